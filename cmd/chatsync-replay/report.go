// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/chatsync/message"
	"github.com/bureau-foundation/chatsync/messaging"
)

// report is the replayed state of every room.
type report struct {
	Rooms []roomReport `yaml:"rooms"`
}

type roomReport struct {
	Room               string         `yaml:"room"`
	Open               bool           `yaml:"open"`
	HistoryFullyLoaded bool           `yaml:"history_fully_loaded,omitempty"`
	Writing            []string       `yaml:"writing,omitempty"`
	Markers            []markerReport `yaml:"markers,omitempty"`
	Entries            []entryReport  `yaml:"entries"`
}

type markerReport struct {
	User      string `yaml:"user"`
	Type      string `yaml:"type"`
	MessageID string `yaml:"message_id"`
}

type entryReport struct {
	Kind      string   `yaml:"kind"`
	ID        string   `yaml:"id"`
	StanzaID  string   `yaml:"stanza_id,omitempty"`
	Date      string   `yaml:"date"`
	From      string   `yaml:"from,omitempty"`
	Body      string   `yaml:"body,omitempty"`
	Own       bool     `yaml:"own,omitempty"`
	Edited    bool     `yaml:"edited,omitempty"`
	Read      string   `yaml:"read,omitempty"`
	ReplyTo   string   `yaml:"reply_to,omitempty"`
	Reactions []string `yaml:"reactions,omitempty"`
}

func buildReport(engine *messaging.Engine, location *time.Location) report {
	var result report
	for _, roomID := range engine.Rooms() {
		room := roomReport{Room: roomID.String()}
		if conversation, open := engine.Conversation(roomID); open {
			room.Open = true
			room.HistoryFullyLoaded = conversation.HistoryFullyLoaded
			room.Writing = conversation.Writing
		}

		markers := engine.Markers(roomID)
		users := make([]string, 0, len(markers))
		for user := range markers {
			users = append(users, user)
		}
		slices.Sort(users)
		for _, user := range users {
			marker := markers[user]
			room.Markers = append(room.Markers, markerReport{
				User:      user,
				Type:      marker.Type.String(),
				MessageID: marker.MessageID,
			})
		}

		for _, entry := range engine.Messages(roomID) {
			room.Entries = append(room.Entries, describe(engine, entry, location))
		}
		result.Rooms = append(result.Rooms, room)
	}
	return result
}

func describe(engine *messaging.Engine, entry message.Message, location *time.Location) entryReport {
	header := entry.Meta()
	result := entryReport{
		Kind: entry.Kind().String(),
		ID:   header.ID,
		Date: formatDate(header.Date, location),
		From: header.From,
		Own:  header.From == engine.Self().Local(),
	}
	switch typed := entry.(type) {
	case message.Text:
		result.StanzaID = typed.StanzaID
		result.Body = typed.Body
		if typed.Attachment != nil {
			result.Body = strings.TrimSpace(typed.Body + " [" + typed.Attachment.Name + "]")
		}
		result.Edited = typed.Edited
		if typed.Read != message.MarkerNone {
			result.Read = typed.Read.String()
		}
		if typed.ReplyTo != nil {
			result.ReplyTo = typed.ReplyTo.From + ": " + typed.ReplyTo.Body
		}
		if typed.StanzaID != "" {
			for _, reaction := range engine.Reactions(header.RoomID, typed.StanzaID) {
				result.Reactions = append(result.Reactions, reaction.Value+" "+reaction.From)
			}
		}
	case message.Deleted:
		result.StanzaID = typed.StanzaID
	case message.Affiliation:
		result.Body = fmt.Sprintf("%s is now %s (%s)", typed.Target, typed.Affiliation, typed.Role)
	case message.Configuration:
		result.Body = fmt.Sprintf("%s set to %q", typed.Field, typed.Value)
	case message.Date:
		result.Date = time.UnixMilli(header.Date).In(location).Format("Monday, 2 January 2006")
	}
	return result
}

func writeYAML(out io.Writer, value report) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return encoder.Close()
}

// styles holds the text renderer's styles. Without color every style
// renders its input unchanged.
type styles struct {
	room     lipgloss.Style
	day      lipgloss.Style
	sender   lipgloss.Style
	own      lipgloss.Style
	muted    lipgloss.Style
	deleted  lipgloss.Style
	reaction lipgloss.Style
}

func newStyles(out io.Writer, color bool) styles {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	// SetColorProfile pins the profile; the renderer would otherwise
	// re-detect it from the environment.
	renderer := lipgloss.NewRenderer(out, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return styles{
		room:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		day:      renderer.NewStyle().Faint(true),
		sender:   renderer.NewStyle().Bold(true),
		own:      renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		muted:    renderer.NewStyle().Foreground(lipgloss.Color("8")),
		deleted:  renderer.NewStyle().Italic(true).Foreground(lipgloss.Color("8")),
		reaction: renderer.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

func writeText(out io.Writer, value report, color bool) error {
	style := newStyles(out, color)
	var builder strings.Builder
	for index, room := range value.Rooms {
		if index > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(style.room.Render(room.Room))
		if room.HistoryFullyLoaded {
			builder.WriteString(style.muted.Render(" (full history)"))
		}
		builder.WriteString("\n")

		for _, entry := range room.Entries {
			builder.WriteString(renderEntry(style, entry))
			builder.WriteString("\n")
		}
		if len(room.Writing) > 0 {
			builder.WriteString(style.muted.Render("  typing: " + strings.Join(room.Writing, ", ")))
			builder.WriteString("\n")
		}
		for _, marker := range room.Markers {
			builder.WriteString(style.muted.Render(fmt.Sprintf("  %s %s %s", marker.User, marker.Type, marker.MessageID)))
			builder.WriteString("\n")
		}
	}
	_, err := io.WriteString(out, builder.String())
	return err
}

func renderEntry(style styles, entry entryReport) string {
	if entry.Kind == "date" {
		return style.day.Render("── " + entry.Date + " ──")
	}
	clock := style.muted.Render(entry.Date[len(entry.Date)-8:])
	switch entry.Kind {
	case "deleted":
		return fmt.Sprintf("  %s %s %s", clock, style.sender.Render(entry.From), style.deleted.Render("message deleted"))
	case "affiliation", "configuration":
		return fmt.Sprintf("  %s %s", clock, style.muted.Render(entry.Body))
	}

	sender := style.sender
	if entry.Own {
		sender = style.own
	}
	line := fmt.Sprintf("  %s %s %s", clock, sender.Render(entry.From), entry.Body)
	if entry.ReplyTo != "" {
		line = fmt.Sprintf("  %s %s %s %s", clock, sender.Render(entry.From), style.muted.Render("> "+entry.ReplyTo+" |"), entry.Body)
	}
	if entry.Edited {
		line += style.muted.Render(" (edited)")
	}
	if entry.Read != "" {
		line += style.muted.Render(" [" + entry.Read + "]")
	}
	if len(entry.Reactions) > 0 {
		line += " " + style.reaction.Render(strings.Join(entry.Reactions, " · "))
	}
	return line
}
