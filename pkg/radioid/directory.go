// Package radioid is an in-memory DMR ID to callsign directory loaded
// from a user.csv style file, used to label IDs in the call log.
package radioid

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/jafo2128/dmrshark/pkg/logger"
)

// User is one directory entry.
type User struct {
	RadioID  uint32
	Callsign string
	Name     string
}

// Directory maps DMR IDs to users. Safe for concurrent lookup.
type Directory struct {
	mu     sync.RWMutex
	users  map[uint32]User
	logger *logger.Logger
}

// NewDirectory creates an empty directory.
func NewDirectory(log *logger.Logger) *Directory {
	return &Directory{
		users:  make(map[uint32]User),
		logger: log,
	}
}

// LoadFile reads a CSV file in the radioid.net user.csv format:
// RADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,...
func (d *Directory) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("can't open id directory: %w", err)
	}
	defer f.Close()

	n, err := d.load(f)
	if err != nil {
		return err
	}

	d.logger.Info("dmr id directory loaded",
		logger.String("path", path),
		logger.Int("users", n))
	return nil
}

func (d *Directory) load(r io.Reader) (int, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	// Skip header row
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}

	users := make(map[uint32]User)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(record) < 2 {
			continue
		}

		radioID, err := strconv.ParseUint(record[0], 10, 32)
		if err != nil {
			continue // Skip invalid radio IDs
		}

		user := User{
			RadioID:  uint32(radioID),
			Callsign: record[1],
		}
		if len(record) >= 4 {
			user.Name = record[2] + " " + record[3]
		}
		users[user.RadioID] = user
	}

	d.mu.Lock()
	d.users = users
	d.mu.Unlock()
	return len(users), nil
}

// Lookup returns the directory entry for an ID.
func (d *Directory) Lookup(radioID uint32) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[radioID]
	return user, ok
}

// CallsignFor returns the callsign for an ID, or the ID rendered as
// text when unknown.
func (d *Directory) CallsignFor(radioID uint32) string {
	if user, ok := d.Lookup(radioID); ok && user.Callsign != "" {
		return user.Callsign
	}
	return strconv.FormatUint(uint64(radioID), 10)
}

// Count returns the number of loaded entries.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
