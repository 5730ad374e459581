package pushover

import (
	"maps"
	"sync"
	"time"
)

// DefaultSound is the gateway's default notification sound.
const DefaultSound = "pushover"

var builtinSounds = map[string]string{
	"pushover":     "Pushover (default)",
	"bike":         "Bike",
	"bugle":        "Bugle",
	"cashregister": "Cash Register",
	"classical":    "Classical",
	"cosmic":       "Cosmic",
	"falling":      "Falling",
	"gamelan":      "Gamelan",
	"incoming":     "Incoming",
	"intermission": "Intermission",
	"magic":        "Magic",
	"mechanical":   "Mechanical",
	"pianobar":     "Piano Bar",
	"siren":        "Siren",
	"spacealarm":   "Space Alarm",
	"tugboat":      "Tug Boat",
	"alien":        "Alien Alarm (long)",
	"climb":        "Climb (long)",
	"persistent":   "Persistent (long)",
	"echo":         "Pushover Echo (long)",
	"updown":       "Up Down (long)",
	"vibrate":      "Vibrate Only",
	"none":         "None (silent)",
}

// SoundCatalog maps gateway sound ids to display names.
type SoundCatalog struct {
	mu        sync.RWMutex
	sounds    map[string]string
	updatedAt time.Time
}

func NewSoundCatalog() *SoundCatalog {
	return &SoundCatalog{sounds: maps.Clone(builtinSounds)}
}

// Replace swaps the whole mapping. Empty input is ignored.
func (c *SoundCatalog) Replace(sounds map[string]string) bool {
	if len(sounds) == 0 {
		return false
	}

	next := maps.Clone(sounds)

	c.mu.Lock()
	c.sounds = next
	c.updatedAt = time.Now().UTC()
	c.mu.Unlock()

	return true
}

func (c *SoundCatalog) All() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.sounds)
}

func (c *SoundCatalog) Name(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name, ok := c.sounds[id]
	return name, ok
}

// UpdatedAt is zero until the first successful refresh.
func (c *SoundCatalog) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.updatedAt
}
