// Package cmn holds zilcore's configuration surface: an atomically-
// swapped config pointer so hot-path readers (zil.Zilog.Commit, the
// writer pipeline) never take a lock to read a tunable.
package cmn

import (
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the tunables governing lwb sizing, commit timeouts,
// replay, and flush behavior, plus compression and checksum selection.
//
// SlogBulk, MaxCopied, ImmediateWriteSz, SpecialIsSlog and ChecksumType
// are decoded and carried here, but no package in this module reads
// them: their field comments describe the tunable, not an effect the
// code has. Checksums are always xxhash.
type Config struct {
	// CommitTimeoutPct: % of EWMA lwb latency used as commit_waiter's
	// adaptive timeout.
	CommitTimeoutPct int `json:"commit_timeout_pct"`
	// ReplayDisable, if true, skips replay entirely (recovery hazard).
	ReplayDisable bool `json:"replay_disable"`
	// NoCacheFlush, if true, skips vdev cache flushes (durability
	// hazard on devices with volatile write reorder).
	NoCacheFlush bool `json:"nocacheflush"`
	// SlogBulk: burst bytes above which SLOG writes downgrade from
	// sync to async priority.
	SlogBulk int64 `json:"slog_bulk"`
	// MaxBlockSize caps lwb allocation size.
	MaxBlockSize int `json:"maxblocksize"`
	// MaxCopied caps WR_COPIED record size.
	MaxCopied int `json:"maxcopied"`
	// ImmediateWriteSz: writes below this size prefer inline over indirect.
	ImmediateWriteSz int `json:"immediate_write_sz"`
	// SpecialIsSlog: treat "special" vdevs as SLOG for sizing purposes.
	SpecialIsSlog bool `json:"special_is_slog"`

	// Compression gates lz4 compression of lwb bytes at issue time.
	Compression bool `json:"compression"`
	// ChecksumType selects the chain/block checksum algorithm.
	ChecksumType string `json:"checksum_type"`
}

// Defaults mirror the illumos/ZFS ZIL module parameter defaults
// closely enough to exercise every code path; they are not tuned for
// production.
func Defaults() *Config {
	return &Config{
		CommitTimeoutPct: 10,
		SlogBulk:         768 * 1024,
		MaxBlockSize:     128 * 1024,
		MaxCopied:        32 * 1024,
		ImmediateWriteSz: 32 * 1024,
		ChecksumType:     "xxhash",
	}
}

// GCO ("global config owner") holds the live, atomically-swapped
// configuration that every package reads through.
var GCO = &globalConfigOwner{}

type globalConfigOwner struct {
	ptr atomic.Value
}

func (g *globalConfigOwner) Put(c *Config) { g.ptr.Store(c) }

func (g *globalConfigOwner) Get() *Config {
	v := g.ptr.Load()
	if v == nil {
		c := Defaults()
		g.ptr.Store(c)
		return c
	}
	return v.(*Config)
}

func init() { GCO.Put(Defaults()) }

// Load decodes JSON configuration and installs it atomically.
func Load(data []byte) (*Config, error) {
	c := Defaults()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	GCO.Put(c)
	return c, nil
}

func (c *Config) Marshal() ([]byte, error) { return json.MarshalIndent(c, "", "  ") }

// CommitTimeout computes a commit waiter's adaptive timeout from the
// running EWMA of lwb latency.
func (c *Config) CommitTimeout(ewma time.Duration) time.Duration {
	pct := c.CommitTimeoutPct
	if pct <= 0 {
		pct = 5
	}
	return ewma * time.Duration(pct) / 100
}
