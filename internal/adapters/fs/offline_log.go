package fs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
)

const (
	logFilePrefix = "storage"
	logFileSuffix = ".txt"

	// Texts are bounded by the 2-byte wire length; leave room for the
	// timestamp and separators.
	maxRecordBytes = 256 * 1024
)

// OfflineLogStore implements ports.OfflineStore with one text file per
// participant: storage<ID>.txt, one "message\tseconds\n" record per line.
type OfflineLogStore struct {
	dir string
}

// NewOfflineLogStore creates a store rooted at dir.
func NewOfflineLogStore(dir string) *OfflineLogStore {
	return &OfflineLogStore{dir: dir}
}

// Dir returns the directory holding the log files.
func (s *OfflineLogStore) Dir() string {
	return s.dir
}

// Path returns the file backing id's log.
func (s *OfflineLogStore) Path(id domain.ParticipantID) string {
	return filepath.Join(s.dir, logFilePrefix+id.String()+logFileSuffix)
}

// Open creates the log file if it does not exist. Existing content is kept
// so a log survives a coordinator restart.
func (s *OfflineLogStore) Open(ctx context.Context, id domain.ParticipantID) (ports.OfflineLog, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	path := s.Path(id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return &OfflineLogFile{path: path}, nil
}

// List returns ids that have a log file, ascending.
func (s *OfflineLogStore) List(ctx context.Context) ([]domain.ParticipantID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []domain.ParticipantID
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := ParseLogFileName(e.Name())
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ParseLogFileName extracts the participant id from a log file name.
func ParseLogFileName(name string) (domain.ParticipantID, bool) {
	if !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, logFilePrefix), logFileSuffix)
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return domain.ParticipantID(n), true
}

// OfflineLogFile implements ports.OfflineLog on a single file.
type OfflineLogFile struct {
	path string
}

// Path returns the backing file path.
func (l *OfflineLogFile) Path() string {
	return l.path
}

// Append writes one record. The file is opened per call so nothing stays
// open between events.
func (l *OfflineLogFile) Append(ctx context.Context, entry domain.LogEntry) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("%w: append: %v", domain.ErrStorage, err)
	}

	w := bufio.NewWriter(f)
	w.WriteString(recordEscaper.Replace(entry.Message))
	w.WriteByte('\t')
	w.WriteString(strconv.FormatInt(entry.ArrivedAt, 10))
	w.WriteByte('\n')

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("%w: append: %v", domain.ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: append: %v", domain.ErrStorage, err)
	}
	return nil
}

// ReadAll returns the records in file order. A missing file reads as empty.
func (l *OfflineLogFile) ReadAll(ctx context.Context) ([]domain.LogEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read: %v", domain.ErrStorage, err)
	}

	var entries []domain.LogEntry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		e, err := parseRecord(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %v", domain.ErrStorage, filepath.Base(l.path), line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read: %v", domain.ErrStorage, err)
	}
	return entries, nil
}

// Truncate empties the file in place.
func (l *OfflineLogFile) Truncate(ctx context.Context) error {
	if err := os.WriteFile(l.path, nil, 0o600); err != nil {
		return fmt.Errorf("%w: truncate: %v", domain.ErrStorage, err)
	}
	return nil
}

// Remove deletes the file. Removing an already missing file succeeds.
func (l *OfflineLogFile) Remove(ctx context.Context) error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove: %v", domain.ErrStorage, err)
	}
	return nil
}

// parseRecord splits at the last tab so messages that contain tabs survive.
func parseRecord(line string) (domain.LogEntry, error) {
	i := strings.LastIndexByte(line, '\t')
	if i < 0 {
		return domain.LogEntry{}, errors.New("record has no timestamp")
	}
	ts, err := strconv.ParseInt(line[i+1:], 10, 64)
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("bad timestamp: %w", err)
	}
	return domain.LogEntry{Message: recordUnescaper.Replace(line[:i]), ArrivedAt: ts}, nil
}

// A message may contain newlines; records are line-delimited, so newlines and
// the escape character itself are escaped. Plain text is stored verbatim.
var (
	recordEscaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	recordUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")
)

var (
	_ ports.OfflineStore = (*OfflineLogStore)(nil)
	_ ports.OfflineLog   = (*OfflineLogFile)(nil)
)
