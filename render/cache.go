package render

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	lunaris "github.com/shuntia/lunaris-api"
	"github.com/shuntia/lunaris-api/gpu"
	"github.com/shuntia/lunaris-api/internal/shardmap"
)

// EntityID identifies a scene entity whose rendered frame is cached.
type EntityID uint64

// String returns a stable debug form.
func (id EntityID) String() string { return fmt.Sprintf("entity-%d", uint64(id)) }

// entityHasher distributes entity IDs across shards.
func entityHasher(id EntityID) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return xxhash.Sum64(b[:])
}

// Tier identifies a cache tier.
type Tier uint8

// Cache tiers, coldest to hottest.
const (
	// TierLow holds compressed CPU buffers.
	TierLow Tier = iota + 1

	// TierMed holds raw CPU buffers.
	TierMed

	// TierHigh holds GPU textures.
	TierHigh
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMed:
		return "med"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("Tier(%d)", uint8(t))
	}
}

// Config configures a TieredCache.
type Config struct {
	// LowCapacity, MedCapacity, HighCapacity are per-tier entry caps.
	// All three must be positive.
	LowCapacity  int
	MedCapacity  int
	HighCapacity int

	// Codec compacts buffers demoted to the low tier. The zero value
	// selects StrategyQOI.
	Codec Strategy

	// Device backs the high tier. Nil defers to the process-wide device
	// installed with gpu.Init; high-tier operations then fail with
	// lunaris.ErrUninitialized until one is installed.
	Device gpu.Device
}

// lowEntry is a compressed CPU-resident frame.
type lowEntry struct {
	token *AccessToken
	img   *CompressedPixelBuffer
}

// medEntry is a raw CPU-resident frame.
type medEntry struct {
	token *AccessToken
	img   *PixelBuffer
}

// highEntry is a GPU-resident frame.
type highEntry struct {
	token *AccessToken
	tex   gpu.TextureID
}

// Payload is the tier-tagged result of a cache lookup. Exactly the field
// matching Tier is set.
type Payload struct {
	Tier       Tier
	Compressed *CompressedPixelBuffer // TierLow
	Image      *PixelBuffer           // TierMed
	Texture    gpu.TextureID          // TierHigh
}

// TieredCache keeps rendered frames in one of three representations: GPU
// textures (high), raw CPU buffers (med), or compressed CPU buffers (low).
// An entity lives in at most one tier at a time; Update migrates entries
// between adjacent tiers toward the configured capacities.
//
// All methods are safe for concurrent use. A promote or demote removes the
// entry from its source tier before inserting at the destination, so a racing
// lookup can miss but never observe the entity twice.
type TieredCache struct {
	capLow  int
	capMed  int
	capHigh int
	codec   Strategy
	dev     gpu.Device

	low  *shardmap.Map[EntityID, lowEntry]
	med  *shardmap.Map[EntityID, medEntry]
	high *shardmap.Map[EntityID, highEntry]
}

// NewTieredCache creates a cache with the given configuration.
// Non-positive capacities fail with lunaris.ErrInvalidArgument.
//
// Capacities normally narrow toward the hotter tiers (low >= med >= high);
// an inverted ordering is accepted but logged, since it starves the cheaper
// tiers.
func NewTieredCache(cfg Config) (*TieredCache, error) {
	if cfg.LowCapacity <= 0 || cfg.MedCapacity <= 0 || cfg.HighCapacity <= 0 {
		return nil, fmt.Errorf("tier capacities %d/%d/%d must be positive: %w",
			cfg.LowCapacity, cfg.MedCapacity, cfg.HighCapacity, lunaris.ErrInvalidArgument)
	}
	if cfg.LowCapacity < cfg.MedCapacity || cfg.MedCapacity < cfg.HighCapacity {
		lunaris.Logger().Warn("tiered cache capacities are inverted",
			"low", cfg.LowCapacity, "med", cfg.MedCapacity, "high", cfg.HighCapacity)
	}

	codec := cfg.Codec
	if codec == (Strategy{}) {
		codec = StrategyQOI
	}

	return &TieredCache{
		capLow:  cfg.LowCapacity,
		capMed:  cfg.MedCapacity,
		capHigh: cfg.HighCapacity,
		codec:   codec,
		dev:     cfg.Device,
		low:     shardmap.New[EntityID, lowEntry](entityHasher),
		med:     shardmap.New[EntityID, medEntry](entityHasher),
		high:    shardmap.New[EntityID, highEntry](entityHasher),
	}, nil
}

// device resolves the GPU device backing the high tier.
func (c *TieredCache) device() (gpu.Device, error) {
	if c.dev != nil {
		return c.dev, nil
	}
	return gpu.Handle()
}

// Insert stores a freshly rendered frame for id, replacing any payload the
// entity already holds in any tier. The entry lands in the med tier when it
// has room, otherwise it is compressed straight into the low tier.
//
// An entity's access history survives replacement: the existing token is
// kept and touched rather than reset.
func (c *TieredCache) Insert(id EntityID, buf *PixelBuffer) error {
	if buf == nil {
		return fmt.Errorf("insert %v: nil buffer: %w", id, lunaris.ErrInvalidArgument)
	}

	// Compress up front when the med tier looks full, so a codec failure
	// surfaces before the entity's previous payload is removed.
	var compressed *CompressedPixelBuffer
	if c.med.Len() >= c.capMed {
		var err error
		compressed, err = buf.Compress(c.codec)
		if err != nil {
			return fmt.Errorf("insert %v: %w", id, err)
		}
	}

	token := c.removeKeepToken(id)
	if token == nil {
		token = newAccessToken()
	}
	token.Touch()

	// Re-check after removal: replacing a med-tier entry frees its slot.
	// When the med tier filled up concurrently instead, the raw insert
	// overshoots the capacity by one and the next Update demotes it.
	if compressed == nil || c.med.Len() < c.capMed {
		c.med.Set(id, medEntry{token: token, img: buf})
		return nil
	}
	c.low.Set(id, lowEntry{token: token, img: compressed})
	return nil
}

// removeKeepToken removes id's payload from whichever tier holds it,
// releasing GPU resources, and returns the surviving access token (nil when
// the entity was absent).
func (c *TieredCache) removeKeepToken(id EntityID) *AccessToken {
	if e, ok := c.high.Delete(id); ok {
		if dev, err := c.device(); err == nil {
			dev.DestroyTexture(e.tex)
		} else {
			lunaris.Logger().Warn("leaking texture: no device to destroy it",
				"entity", id, "texture", uint64(e.tex), "error", err)
		}
		return e.token
	}
	if e, ok := c.med.Delete(id); ok {
		return e.token
	}
	if e, ok := c.low.Delete(id); ok {
		return e.token
	}
	return nil
}

// Lookup returns the entity's current payload, tagged with its tier, and
// touches its access token. Fails with lunaris.ErrNotFound when the entity
// is in no tier.
func (c *TieredCache) Lookup(id EntityID) (Payload, error) {
	if e, ok := c.high.Get(id); ok {
		e.token.Touch()
		return Payload{Tier: TierHigh, Texture: e.tex}, nil
	}
	if e, ok := c.med.Get(id); ok {
		e.token.Touch()
		return Payload{Tier: TierMed, Image: e.img}, nil
	}
	if e, ok := c.low.Get(id); ok {
		e.token.Touch()
		return Payload{Tier: TierLow, Compressed: e.img}, nil
	}
	return Payload{}, fmt.Errorf("lookup %v: %w", id, lunaris.ErrNotFound)
}

// Touch records an access without retrieving the payload. Reports whether
// the entity was present.
func (c *TieredCache) Touch(id EntityID) bool {
	if e, ok := c.high.Get(id); ok {
		e.token.Touch()
		return true
	}
	if e, ok := c.med.Get(id); ok {
		e.token.Touch()
		return true
	}
	if e, ok := c.low.Get(id); ok {
		e.token.Touch()
		return true
	}
	return false
}

// Contains reports whether any tier holds the entity.
func (c *TieredCache) Contains(id EntityID) bool {
	return c.high.Contains(id) || c.med.Contains(id) || c.low.Contains(id)
}

// TierOf returns the tier currently holding the entity.
func (c *TieredCache) TierOf(id EntityID) (Tier, bool) {
	if c.high.Contains(id) {
		return TierHigh, true
	}
	if c.med.Contains(id) {
		return TierMed, true
	}
	if c.low.Contains(id) {
		return TierLow, true
	}
	return 0, false
}

// Promote moves the entity one tier up: low→med decompresses, med→high
// uploads to the device. The entry is removed from the source tier before
// the destination insert; on a conversion failure it is restored to the
// source tier and the error returned.
//
// Promoting a high-tier entity fails with lunaris.ErrInvalidArgument; an
// absent entity fails with lunaris.ErrNotFound.
func (c *TieredCache) Promote(id EntityID) error {
	if e, ok := c.low.Delete(id); ok {
		img, err := e.img.Decompress()
		if err != nil {
			c.low.Set(id, e)
			return fmt.Errorf("promote %v: %w", id, err)
		}
		c.med.Set(id, medEntry{token: e.token, img: img})
		return nil
	}

	if e, ok := c.med.Delete(id); ok {
		dev, err := c.device()
		if err != nil {
			c.med.Set(id, e)
			return fmt.Errorf("promote %v: %w", id, err)
		}
		tex, err := UploadTexture(dev, e.img, gpu.TextureUsageTextureBinding|gpu.TextureUsageCopySrc)
		if err != nil {
			c.med.Set(id, e)
			return fmt.Errorf("promote %v: %w", id, err)
		}
		c.high.Set(id, highEntry{token: e.token, tex: tex})
		return nil
	}

	if c.high.Contains(id) {
		return fmt.Errorf("promote %v: already at highest tier: %w", id, lunaris.ErrInvalidArgument)
	}
	return fmt.Errorf("promote %v: %w", id, lunaris.ErrNotFound)
}

// Demote moves the entity one tier down: high→med reads the texture back
// and releases it, med→low compresses with the configured codec. On a
// conversion failure the entry is restored to the source tier.
//
// Demoting a low-tier entity fails with lunaris.ErrInvalidArgument (use
// Evict to drop it); an absent entity fails with lunaris.ErrNotFound.
func (c *TieredCache) Demote(id EntityID) error {
	if e, ok := c.high.Delete(id); ok {
		dev, err := c.device()
		if err != nil {
			c.high.Set(id, e)
			return fmt.Errorf("demote %v: %w", id, err)
		}
		img, err := ReadbackTexture(dev, e.tex)
		if err != nil {
			c.high.Set(id, e)
			return fmt.Errorf("demote %v: %w", id, err)
		}
		dev.DestroyTexture(e.tex)
		c.med.Set(id, medEntry{token: e.token, img: img})
		return nil
	}

	if e, ok := c.med.Delete(id); ok {
		compressed, err := e.img.Compress(c.codec)
		if err != nil {
			c.med.Set(id, e)
			return fmt.Errorf("demote %v: %w", id, err)
		}
		c.low.Set(id, lowEntry{token: e.token, img: compressed})
		return nil
	}

	if c.low.Contains(id) {
		return fmt.Errorf("demote %v: already at lowest tier: %w", id, lunaris.ErrInvalidArgument)
	}
	return fmt.Errorf("demote %v: %w", id, lunaris.ErrNotFound)
}

// Evict removes the entity from whichever tier holds it, releasing GPU
// resources. Reports whether an entry was removed.
func (c *TieredCache) Evict(id EntityID) bool {
	return c.removeKeepToken(id) != nil
}

// Len returns the total entry count across all tiers.
func (c *TieredCache) Len() int {
	return c.low.Len() + c.med.Len() + c.high.Len()
}

// TierLen returns the entry count of a single tier.
func (c *TieredCache) TierLen(t Tier) int {
	switch t {
	case TierLow:
		return c.low.Len()
	case TierMed:
		return c.med.Len()
	case TierHigh:
		return c.high.Len()
	default:
		return 0
	}
}

// scoredEntry pairs an entity with a point-in-time token snapshot for tier
// ranking.
type scoredEntry struct {
	id   EntityID
	snap tokenSnapshot
}

func snapshotHigh(m *shardmap.Map[EntityID, highEntry]) []scoredEntry {
	out := make([]scoredEntry, 0, m.Len())
	m.Range(func(id EntityID, e highEntry) bool {
		out = append(out, scoredEntry{id: id, snap: e.token.snapshot()})
		return true
	})
	return out
}

func snapshotMed(m *shardmap.Map[EntityID, medEntry]) []scoredEntry {
	out := make([]scoredEntry, 0, m.Len())
	m.Range(func(id EntityID, e medEntry) bool {
		out = append(out, scoredEntry{id: id, snap: e.token.snapshot()})
		return true
	})
	return out
}

func snapshotLow(m *shardmap.Map[EntityID, lowEntry]) []scoredEntry {
	out := make([]scoredEntry, 0, m.Len())
	m.Range(func(id EntityID, e lowEntry) bool {
		out = append(out, scoredEntry{id: id, snap: e.token.snapshot()})
		return true
	})
	return out
}

// coldest returns the best demotion or eviction candidate.
func coldest(entries []scoredEntry) (EntityID, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.snap.colderThan(best.snap) {
			best = e
		}
	}
	return best.id, true
}

// hottest returns the best promotion candidate.
func hottest(entries []scoredEntry) (EntityID, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.snap.hotterThan(best.snap) {
			best = e
		}
	}
	return best.id, true
}

// Update rebalances the cache toward the configured capacities. Each
// iteration snapshots the tiers and performs at most one move, in priority
// order: demote the coldest over-capacity high entry, demote the coldest
// over-capacity med entry, evict the coldest over-capacity low entry,
// promote the hottest med entry into spare high capacity, promote the
// hottest low entry into spare med capacity. The loop repeats until an
// iteration makes no move.
//
// A conversion error aborts the pass and is returned; moves already made are
// kept. A candidate that vanished between snapshot and move (a concurrent
// eviction) is skipped, not treated as an error.
func (c *TieredCache) Update() error {
	for {
		moved, err := c.rebalanceStep()
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
	}
}

// rebalanceStep performs at most one migration and reports whether it
// changed anything.
func (c *TieredCache) rebalanceStep() (bool, error) {
	if c.high.Len() > c.capHigh {
		if id, ok := coldest(snapshotHigh(c.high)); ok {
			return true, c.tolerateVanished(c.Demote(id))
		}
	}
	if c.med.Len() > c.capMed {
		if id, ok := coldest(snapshotMed(c.med)); ok {
			return true, c.tolerateVanished(c.Demote(id))
		}
	}
	if c.low.Len() > c.capLow {
		if id, ok := coldest(snapshotLow(c.low)); ok {
			c.Evict(id)
			return true, nil
		}
	}
	if c.high.Len() < c.capHigh {
		if id, ok := hottest(snapshotMed(c.med)); ok {
			return true, c.tolerateVanished(c.Promote(id))
		}
	}
	if c.med.Len() < c.capMed {
		if id, ok := hottest(snapshotLow(c.low)); ok {
			return true, c.tolerateVanished(c.Promote(id))
		}
	}
	return false, nil
}

// tolerateVanished filters the NotFound a stale snapshot produces when the
// candidate was evicted between snapshot and move.
func (c *TieredCache) tolerateVanished(err error) error {
	if errors.Is(err, lunaris.ErrNotFound) {
		return nil
	}
	return err
}
