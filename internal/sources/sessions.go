// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package sources

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// SessionImporter scans session log directories and produces one work
// item per session file. The file stem is the session id and the source
// id, so re-scans update the same row.
type SessionImporter struct {
	db     *database.DB
	cfg    *config.SourcesConfig
	userID string
	now    func() time.Time
}

// NewSessionImporter creates a session importer.
func NewSessionImporter(db *database.DB, cfg *config.SourcesConfig, userID string) *SessionImporter {
	return &SessionImporter{db: db, cfg: cfg, userID: userID, now: time.Now}
}

// Name identifies the importer in status records and error summaries.
func (s *SessionImporter) Name() string { return "sessions" }

// Import scans every configured session directory. Individual bad files
// are logged and skipped; a directory that cannot be read at all counts
// as an importer failure. Returns the number of items upserted.
func (s *SessionImporter) Import(ctx context.Context) (int, error) {
	cutoff := s.cutoffDate()
	imported := 0
	var dirErrs []error

	for _, dir := range s.cfg.SessionDirs {
		files, err := listSessionFiles(dir)
		if err != nil {
			dirErrs = append(dirErrs, fmt.Errorf("session dir %s: %w", dir, err))
			continue
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return imported, err
			}
			session, err := parseSessionFile(path)
			if err != nil {
				logging.Warn().Err(err).Str("file", path).Msg("Skipping unparseable session file")
				continue
			}
			if session.messageCount == 0 {
				continue
			}
			date := dateOf(session.firstTS)
			if date == "" || (cutoff != "" && date < cutoff) {
				continue
			}
			item := s.buildItem(path, session, date)
			if err := s.db.UpsertWorkItem(ctx, item); err != nil {
				logging.Error().Err(err).Str("file", path).Msg("Failed to upsert session work item")
				continue
			}
			imported++
		}
	}
	return imported, errors.Join(dirErrs...)
}

func (s *SessionImporter) buildItem(path string, session *parsedSession, date string) *models.WorkItem {
	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	projectName := filepath.Base(session.cwd)

	title := session.firstMessage
	if title == "" {
		title = "Agent session"
	}
	title = fmt.Sprintf("[%s] %s", projectName, truncate(title, 60))

	return &models.WorkItem{
		ID:          uuid.New().String(),
		UserID:      s.userID,
		Source:      models.SourceSession,
		SourceID:    sessionID,
		Title:       title,
		Description: buildSessionDescription(session),
		Hours:       SessionHours(session.firstTS, session.lastTS),
		Date:        date,
		ProjectPath: session.cwd,
	}
}

func (s *SessionImporter) cutoffDate() string {
	if s.cfg.LookbackDays <= 0 {
		return ""
	}
	return s.now().AddDate(0, 0, -s.cfg.LookbackDays).Format(models.DateFormat)
}

func listSessionFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".jsonl" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// parsedSession is the distilled content of one session log.
type parsedSession struct {
	cwd           string
	firstTS       string
	lastTS        string
	firstMessage  string
	messageCount  int
	toolCounts    map[string]int
	filesModified []string
}

// sessionLine is one JSONL record of a session log.
type sessionLine struct {
	Cwd       string `json:"cwd"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Message   *struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// contentBlock is one element of a structured message content array.
type contentBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Name  string `json:"name"`
	Input *struct {
		FilePath string `json:"file_path"`
	} `json:"input"`
}

func parseSessionFile(path string) (*parsedSession, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Warn().Err(cerr).Str("file", path).Msg("Failed to close session file")
		}
	}()

	session := &parsedSession{toolCounts: make(map[string]int)}
	seenFiles := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	// Session lines embed whole tool payloads and can be large.
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line sessionLine
		if err := json.Unmarshal(raw, &line); err != nil {
			continue
		}

		if session.cwd == "" && line.Cwd != "" {
			session.cwd = line.Cwd
		}
		if line.Timestamp != "" {
			if session.firstTS == "" {
				session.firstTS = line.Timestamp
			}
			session.lastTS = line.Timestamp
		}
		if line.Message == nil {
			continue
		}
		session.messageCount++

		if line.Message.Role == "user" && session.firstMessage == "" {
			if text := plainText(line.Message.Content); isMeaningfulMessage(text) {
				session.firstMessage = strings.TrimSpace(text)
			}
		}
		for _, block := range toolBlocks(line.Message.Content) {
			session.toolCounts[block.Name]++
			if block.Input != nil && block.Input.FilePath != "" &&
				(block.Name == "Edit" || block.Name == "Write") && !seenFiles[block.Input.FilePath] {
				seenFiles[block.Input.FilePath] = true
				session.filesModified = append(session.filesModified, block.Input.FilePath)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return session, nil
}

// plainText extracts user-visible text from a message content field that
// may be a bare string or an array of typed blocks.
func plainText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			return b.Text
		}
	}
	return ""
}

func toolBlocks(content json.RawMessage) []contentBlock {
	if len(content) == 0 || content[0] != '[' {
		return nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil
	}
	out := blocks[:0]
	for _, b := range blocks {
		if b.Type == "tool_use" && b.Name != "" {
			out = append(out, b)
		}
	}
	return out
}

// isMeaningfulMessage filters warmup pings and injected command wrappers
// out of title candidates.
func isMeaningfulMessage(content string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(content))
	if strings.HasPrefix(trimmed, "warmup") {
		return false
	}
	if strings.HasPrefix(trimmed, "<command-") || strings.HasPrefix(trimmed, "<system-") {
		return false
	}
	return len(trimmed) >= 10
}

const maxFilesListed = 5

func buildSessionDescription(session *parsedSession) string {
	var parts []string

	if len(session.toolCounts) > 0 {
		type toolCount struct {
			name  string
			count int
		}
		tools := make([]toolCount, 0, len(session.toolCounts))
		for name, count := range session.toolCounts {
			tools = append(tools, toolCount{name, count})
		}
		sort.Slice(tools, func(i, j int) bool {
			if tools[i].count != tools[j].count {
				return tools[i].count > tools[j].count
			}
			return tools[i].name < tools[j].name
		})
		if len(tools) > 8 {
			tools = tools[:8]
		}
		entries := make([]string, 0, len(tools))
		for _, tc := range tools {
			entries = append(entries, fmt.Sprintf("%s: %d", tc.name, tc.count))
		}
		parts = append(parts, "Tools: "+strings.Join(entries, ", "))
	}

	if n := len(session.filesModified); n > 0 {
		shown := session.filesModified
		more := ""
		if n > maxFilesListed {
			shown = shown[:maxFilesListed]
			more = fmt.Sprintf(" (+%d more)", n-maxFilesListed)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Modified files (%d%s):\n", len(shown), more)
		for _, f := range shown {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
		parts = append(parts, strings.TrimRight(sb.String(), "\n"))
	}

	parts = append(parts, "Project: "+session.cwd)
	return strings.Join(parts, "\n\n")
}

func dateOf(timestamp string) string {
	if idx := strings.IndexByte(timestamp, 'T'); idx == len(models.DateFormat) {
		return timestamp[:idx]
	}
	return ""
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
