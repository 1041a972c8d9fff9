package main

import (
	"context"
	"fmt"
	"strings"

	"notesync/syncproto"

	"github.com/spf13/cobra"
)

var (
	noteTitle     string
	noteContent   string
	noteColor     string
	noteImportant bool
	noteAttach    string
	listArchive   bool
)

func addNoteFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&noteTitle, "title", "", "Note title")
	cmd.Flags().StringVar(&noteContent, "content", "", "Note body")
	cmd.Flags().StringVar(&noteColor, "color", "", "Color category (neutral, blue, green, yellow, orange, red, purple)")
	cmd.Flags().BoolVar(&noteImportant, "important", false, "Mark the note as important")
	cmd.Flags().StringVar(&noteAttach, "attach", "", "Path of a file to attach")
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		color, err := syncproto.ParseColorCategory(noteColor)
		if err != nil {
			fatal("Invalid color", err)
		}

		d := openDevice()
		defer d.close()

		note, err := d.service.CreateNote(context.Background(), syncproto.Note{
			Title:         noteTitle,
			Content:       noteContent,
			ColorCategory: color,
			IsImportant:   noteImportant,
		}, noteAttach)
		if err != nil {
			fatal("Failed to create note", err)
		}
		fmt.Println(note.ID)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change fields of a note",
	Long:  `Only the fields whose flags are given are changed.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := openDevice()
		defer d.close()

		var patch syncproto.NotePatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &noteTitle
		}
		if flags.Changed("content") {
			patch.Content = &noteContent
		}
		if flags.Changed("color") {
			color, err := syncproto.ParseColorCategory(noteColor)
			if err != nil {
				fatal("Invalid color", err)
			}
			patch.ColorCategory = &color
		}
		if flags.Changed("important") {
			patch.IsImportant = &noteImportant
		}
		if flags.Changed("attach") {
			name, err := d.service.ImportAttachment(noteAttach)
			if err != nil {
				fatal("Failed to import attachment", err)
			}
			patch.AttachmentFile = &name
		}

		note, err := d.service.EditNote(context.Background(), args[0], patch)
		printNotices(d.service)
		if err != nil {
			fatal("Failed to edit note", err)
		}
		fmt.Println(note.ID, note.ChangedDate)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live notes, or archived ones with --archive",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := openDevice()
		defer d.close()

		ctx := context.Background()
		list := d.service.ListNotes
		if listArchive {
			list = d.service.ListArchive
		}
		notes, err := list(ctx)
		if err != nil {
			fatal("Failed to list notes", err)
		}

		if len(notes) == 0 {
			fmt.Println("No notes found.")
			return
		}
		for _, n := range notes {
			fmt.Println(formatNote(n))
		}
	},
}

func formatNote(n syncproto.Note) string {
	var sb strings.Builder
	sb.WriteString(n.ID)
	sb.WriteString("  ")
	if n.IsImportant {
		sb.WriteString("! ")
	}
	sb.WriteString("[" + string(n.ColorCategory.Normalize()) + "] ")
	title := n.Title
	if title == "" {
		title = firstLine(n.Content)
	}
	sb.WriteString(title)
	if n.HasAttachment() {
		sb.WriteString("  (" + *n.AttachmentFile + ")")
	}
	sb.WriteString("  " + n.ChangedDate.Time().Local().Format("2006-01-02 15:04"))
	return sb.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if len(line) > 60 {
		line = line[:60] + "..."
	}
	return line
}

var archiveCmd = &cobra.Command{
	Use:   "archive ID",
	Short: "Move a note to the archive and delete it on the server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := openDevice()
		defer d.close()

		if err := d.service.ArchiveNote(context.Background(), args[0]); err != nil {
			fatal("Failed to archive note", err)
		}
		fmt.Println("archived", args[0])
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Bring an archived note back",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := openDevice()
		defer d.close()

		if _, err := d.service.RestoreNote(context.Background(), args[0]); err != nil {
			fatal("Failed to restore note", err)
		}
		fmt.Println("restored", args[0])
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently remove every archived note",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := openDevice()
		defer d.close()

		n, err := d.service.PurgeArchive(context.Background())
		if err != nil {
			fatal("Failed to purge archive", err)
		}
		fmt.Printf("purged %d note(s)\n", n)
	},
}

func init() {
	addNoteFlags(addCmd)
	addNoteFlags(editCmd)
	listCmd.Flags().BoolVar(&listArchive, "archive", false, "List archived notes")

	rootCmd.AddCommand(addCmd, editCmd, listCmd, archiveCmd, restoreCmd, purgeCmd)
}
