package main

import (
	"chat-presence/infrastructure/storage"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mama165/sdk-go/logs"
)

func main() {
	driver := flag.String("store", storage.DriverBadger, "Store driver (badger or pebble)")
	path := flag.String("db", "data", "Path to the store")
	table := flag.String("table", "all", "Table to dump: users, channels, messages, offline or all")
	flag.Parse()

	// The store is opened read-only, a running server keeps its lock.
	backend, err := storage.Open(*driver, *path, logs.GetLoggerFromString("WARN"), true)
	if err != nil {
		log.Fatal("Error while opening the store: ", err)
	}
	repository := storage.NewStateRepository(backend, logs.GetLoggerFromString("WARN"))
	defer repository.Close()

	if err = dump(os.Stdout, repository, *table); err != nil {
		log.Fatal(err)
	}
}

func dump(w io.Writer, repository *storage.StateRepository, table string) error {
	dumpers := []struct {
		name string
		fn   func(io.Writer, *storage.StateRepository) error
	}{
		{"users", dumpUsers},
		{"channels", dumpChannels},
		{"messages", dumpMessages},
		{"offline", dumpOffline},
	}
	found := false
	for _, d := range dumpers {
		if table != "all" && table != d.name {
			continue
		}
		found = true
		fmt.Fprintf(w, "\n== %s ==\n", d.name)
		if err := d.fn(w, repository); err != nil {
			return fmt.Errorf("dumping %s: %w", d.name, err)
		}
	}
	if !found {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}
