package main

import (
	"chat-presence/domain"
	"chat-presence/infrastructure/storage"
	"chat-presence/protocol"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func dumpUsers(w io.Writer, repository *storage.StateRepository) error {
	users, err := repository.LoadUsers()
	if err != nil {
		return err
	}
	table := newTable(w, "Seq", "Name", "Online", "Last Seen")
	for _, u := range users {
		table.Append([]string{seq(u.Seq), u.Name, strconv.FormatBool(u.Online), protocol.FormatTime(u.LastSeen)})
	}
	table.Render()
	return nil
}

func dumpChannels(w io.Writer, repository *storage.StateRepository) error {
	channels, err := repository.LoadChannels()
	if err != nil {
		return err
	}
	table := newTable(w, "Seq", "Name")
	for _, c := range channels {
		table.Append([]string{seq(c.Seq), c.Name})
	}
	table.Render()
	return nil
}

func dumpMessages(w io.Writer, repository *storage.StateRepository) error {
	messages, err := repository.LoadMessages()
	if err != nil {
		return err
	}
	table := newTable(w, "Seq", "Kind", "Sender", "Target", "Body", "At")
	for _, m := range messages {
		kind, target := "channel", m.Channel
		if m.Kind == domain.PrivateMessage {
			kind, target = "private", m.Recipient
		}
		table.Append([]string{seq(m.Seq), kind, m.Sender, target, m.Body, protocol.FormatTime(m.At)})
	}
	table.Render()
	return nil
}

func dumpOffline(w io.Writer, repository *storage.StateRepository) error {
	entries, err := repository.LoadOffline()
	if err != nil {
		return err
	}
	table := newTable(w, "Seq", "Recipient", "Sender", "Body", "At")
	for _, e := range entries {
		table.Append([]string{seq(e.Seq), e.Recipient, e.Sender, e.Body, protocol.FormatTime(e.At)})
	}
	table.Render()
	return nil
}

func seq(value uint64) string {
	return strconv.FormatUint(value, 10)
}
