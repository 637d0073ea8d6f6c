package yomi

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/sqlite"
)

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dictionary maps surface words (kanji, or kana read differently from
// how they are written) to their readings.
type Dictionary struct {
	words    map[string][][]byte
	prefixes map[string]struct{}
}

// NewDictionary returns a dictionary holding only the particle readings
// of ハ and ヘ.
func NewDictionary() *Dictionary {
	d := &Dictionary{
		words:    make(map[string][][]byte),
		prefixes: make(map[string]struct{}),
	}
	d.mustAdd("ハ", "ハ", "ワ")
	d.mustAdd("ヘ", "ヘ", "エ")
	return d
}

func (d *Dictionary) mustAdd(word string, readings ...string) {
	if err := d.Add(word, readings...); err != nil {
		panic(err)
	}
}

// Add records readings for word. Readings may be written in hiragana or
// katakana; duplicates are ignored.
func (d *Dictionary) Add(word string, readings ...string) error {
	word = ToKatakana(strings.TrimSpace(word))
	if word == "" {
		return fmt.Errorf("empty dictionary word: %w", apperrors.ErrInvalidInput)
	}
	for _, r := range readings {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		y, ok := Encode(ToKatakana(r))
		if !ok {
			return fmt.Errorf("reading %q of %q is not kana: %w", r, word, apperrors.ErrInvalidInput)
		}
		y = Canonicalize(y)
		if !d.hasReading(word, y) {
			d.words[word] = append(d.words[word], y)
		}
	}
	runes := []rune(word)
	for i := 1; i < len(runes); i++ {
		d.prefixes[string(runes[:i])] = struct{}{}
	}
	return nil
}

func (d *Dictionary) hasReading(word string, y []byte) bool {
	for _, r := range d.words[word] {
		if string(r) == string(y) {
			return true
		}
	}
	return false
}

// Len returns the number of words with at least one reading.
func (d *Dictionary) Len() int {
	return len(d.words)
}

// Readings returns the readings of word.
func (d *Dictionary) Readings(word string) [][]byte {
	return d.words[ToKatakana(word)]
}

// lookup calls fn for every dictionary word starting at runes[i], passing
// the index of the word's last rune.
func (d *Dictionary) lookup(runes []rune, i int, fn func(last int, readings [][]byte)) {
	if d == nil {
		return
	}
	for j := i; j < len(runes); j++ {
		w := string(runes[i : j+1])
		if rs, ok := d.words[w]; ok {
			fn(j, rs)
		}
		if _, ok := d.prefixes[w]; !ok {
			return
		}
	}
}

// LoadTSV reads lines of the form "word<TAB>reading[,reading...]". Blank
// lines and lines starting with # are skipped.
func LoadTSV(r io.Reader) (*Dictionary, error) {
	d := NewDictionary()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, readings, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("dictionary line %d: %w: want word<TAB>readings", line, apperrors.ErrInvalidInput)
		}
		if err := d.Add(word, strings.Split(readings, ",")...); err != nil {
			return nil, fmt.Errorf("dictionary line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	return d, nil
}

// LoadSQLite reads (word, reading) rows from table.
func LoadSQLite(ctx context.Context, db *sql.DB, table string) (*Dictionary, error) {
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("dictionary table %q: %w", table, apperrors.ErrInvalidInput)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT word, reading FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("querying dictionary: %w", err)
	}
	defer rows.Close()
	d := NewDictionary()
	for rows.Next() {
		var word, reading string
		if err := rows.Scan(&word, &reading); err != nil {
			return nil, fmt.Errorf("scanning dictionary row: %w", err)
		}
		if err := d.Add(word, reading); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading dictionary rows: %w", err)
	}
	return d, nil
}

// LoadFile loads a TSV dictionary, or the "readings" table of an SQLite
// database when the file ends in .db or .sqlite.
func LoadFile(ctx context.Context, path string) (*Dictionary, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		client, err := sqlite.New(ctx, config.SQLiteConfig{Path: path, BusyTimeout: 5 * time.Second})
		if err != nil {
			return nil, err
		}
		defer client.Close()
		return LoadSQLite(ctx, client.DB, "readings")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary: %w", err)
	}
	defer f.Close()
	return LoadTSV(f)
}

var (
	defaultOnce sync.Once
	defaultDict *Dictionary
	defaultErr  error
)

// Init loads the process-wide dictionary from path. Only the first call
// has an effect; later calls return its outcome.
func Init(ctx context.Context, path string) (*Dictionary, error) {
	defaultOnce.Do(func() {
		if path == "" {
			defaultErr = fmt.Errorf("no dictionary configured: %w", apperrors.ErrDictionary)
			return
		}
		defaultDict, defaultErr = LoadFile(ctx, path)
		if defaultErr != nil {
			defaultErr = fmt.Errorf("%w: %v", apperrors.ErrDictionary, defaultErr)
			return
		}
		slog.Default().With("component", "yomi").Info("reading dictionary loaded", "path", path, "words", defaultDict.Len())
	})
	return defaultDict, defaultErr
}

// Default returns the dictionary loaded by Init.
func Default() (*Dictionary, error) {
	if defaultDict == nil && defaultErr == nil {
		return nil, fmt.Errorf("dictionary not initialised: %w", apperrors.ErrDictionary)
	}
	return defaultDict, defaultErr
}
