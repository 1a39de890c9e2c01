package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// cliTimeFormat is the timestamp layout DiscordChatExporter accepts for its
// --after/--before filters.
const cliTimeFormat = "2006-01-02 15:04:05"

// CLIFetcher invokes the DiscordChatExporter CLI and parses its JSON export.
type CLIFetcher struct {
	Binary    string // path to DiscordChatExporter.Cli
	Token     string
	ExportDir string // where temporary export files are written
	KeepFiles bool   // keep export files instead of deleting them

	// runCommand is swappable in tests.
	runCommand func(cmd *exec.Cmd) error
}

// NewCLIFetcher creates a CLIFetcher.
func NewCLIFetcher(binary, token, exportDir string) (*CLIFetcher, error) {
	if binary == "" {
		return nil, fmt.Errorf("export: exporter binary is required")
	}
	if token == "" {
		return nil, fmt.Errorf("export: discord token is required")
	}
	if exportDir == "" {
		exportDir = os.TempDir()
	}
	return &CLIFetcher{
		Binary:     binary,
		Token:      token,
		ExportDir:  exportDir,
		runCommand: func(cmd *exec.Cmd) error { return cmd.Run() },
	}, nil
}

// exportPayload mirrors the top level of a DiscordChatExporter JSON export.
type exportPayload struct {
	Messages []exportMessage `json:"messages"`
}

type exportMessage struct {
	ID              string       `json:"id"`
	Timestamp       string       `json:"timestamp"`
	TimestampEdited string       `json:"timestampEdited"`
	Content         string       `json:"content"`
	Author          exportAuthor `json:"author"`
}

type exportAuthor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

// FetchBatch exports the channel's messages in [start, end] to a temporary
// JSON file and parses it. CLI failures and timeouts map to ErrUnavailable;
// an undecodable export maps to ErrMalformed.
func (f *CLIFetcher) FetchBatch(ctx context.Context, channelID string, start, end time.Time) ([]RawRecord, error) {
	if channelID == "" {
		return nil, fmt.Errorf("export: channelID is required")
	}

	if err := os.MkdirAll(f.ExportDir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create export dir: %w", err)
	}
	exportPath := filepath.Join(f.ExportDir,
		fmt.Sprintf("%s_%d.json", channelID, time.Now().UnixNano()))
	if !f.KeepFiles {
		defer func() {
			if err := os.Remove(exportPath); err != nil && !os.IsNotExist(err) {
				log.Printf("export: remove %s: %v", exportPath, err)
			}
		}()
	}

	cmd := f.buildCommand(ctx, channelID, exportPath, start, end)
	if err := f.runCommand(cmd); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: exporter timed out: %v", ErrUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: exporter: %v", ErrUnavailable, err)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		return nil, fmt.Errorf("%w: exporter produced no export file: %v", ErrUnavailable, err)
	}

	return parseExport(data)
}

// buildCommand constructs the exec.Cmd for the exporter CLI.
func (f *CLIFetcher) buildCommand(ctx context.Context, channelID, exportPath string, start, end time.Time) *exec.Cmd {
	cmd := exec.CommandContext(ctx, f.Binary,
		"export",
		"-t", f.Token,
		"-c", channelID,
		"-f", "Json",
		"-o", exportPath,
		"--after", start.UTC().Format(cliTimeFormat),
		"--before", end.UTC().Format(cliTimeFormat),
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second
	return cmd
}

// parseExport decodes an export file into raw records.
func parseExport(data []byte) ([]RawRecord, error) {
	var payload exportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode export: %v", ErrMalformed, err)
	}
	if payload.Messages == nil {
		return nil, fmt.Errorf("%w: export missing messages array", ErrMalformed)
	}

	records := make([]RawRecord, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		records = append(records, RawRecord{
			ID:              m.ID,
			Timestamp:       m.Timestamp,
			TimestampEdited: m.TimestampEdited,
			Content:         m.Content,
			AuthorID:        m.Author.ID,
			AuthorName:      m.Author.Name,
			AuthorNickname:  m.Author.Nickname,
		})
	}
	return records, nil
}
