package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

// TimetableGrid maps (day, slot) cells to entries over an ordered list of
// generated time slots. It is not safe for concurrent use; the workflow owns
// the locking.
type TimetableGrid struct {
	slots    []models.TimeSlot
	entries  map[models.SlotKey]models.Entry
	readOnly bool
}

// NewTimetableGrid builds an empty grid over a copy of slots.
func NewTimetableGrid(slots []models.TimeSlot) *TimetableGrid {
	copied := make([]models.TimeSlot, len(slots))
	copy(copied, slots)
	return &TimetableGrid{slots: copied, entries: make(map[models.SlotKey]models.Entry)}
}

// Slots returns the ordered time slot rows.
func (g *TimetableGrid) Slots() []models.TimeSlot {
	out := make([]models.TimeSlot, len(g.slots))
	copy(out, g.slots)
	return out
}

// Slot returns the time slot row at index.
func (g *TimetableGrid) Slot(index int) (models.TimeSlot, bool) {
	if index < 0 || index >= len(g.slots) {
		return models.TimeSlot{}, false
	}
	return g.slots[index], true
}

// Key builds a cell key, checking the day and slot index.
func (g *TimetableGrid) Key(day models.Day, slot int) (models.SlotKey, error) {
	if !day.Valid() {
		return models.SlotKey{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %d", int(day)))
	}
	if slot < 0 || slot >= len(g.slots) {
		return models.SlotKey{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %d out of range (0..%d)", slot, len(g.slots)-1))
	}
	return models.SlotKey{Day: day, Slot: slot}, nil
}

// KeyForLabel resolves a cell key from a slot label, as stored by the backend.
func (g *TimetableGrid) KeyForLabel(day models.Day, label string) (models.SlotKey, error) {
	for idx, slot := range g.slots {
		if slot.Label == label {
			return g.Key(day, idx)
		}
	}
	return models.SlotKey{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown time slot %q", label))
}

// Fillable reports whether an entry may be placed at key.
func (g *TimetableGrid) Fillable(key models.SlotKey) bool {
	if g.readOnly || !key.Day.Valid() {
		return false
	}
	slot, ok := g.Slot(key.Slot)
	return ok && !slot.IsBreak
}

// Get returns the entry at key.
func (g *TimetableGrid) Get(key models.SlotKey) (models.Entry, bool) {
	entry, ok := g.entries[key]
	return entry, ok
}

// Upsert places entry at key, replacing any previous entry entirely.
func (g *TimetableGrid) Upsert(key models.SlotKey, entry models.Entry) error {
	if err := g.checkWritable(key); err != nil {
		return err
	}
	if entry.Type == "" {
		entry.Type = models.ClassTypeRegular
	}
	g.entries[key] = entry
	return nil
}

// Delete removes the entry at key and reports whether one existed.
func (g *TimetableGrid) Delete(key models.SlotKey) (bool, error) {
	if err := g.checkWritable(key); err != nil {
		return false, err
	}
	_, existed := g.entries[key]
	delete(g.entries, key)
	return existed, nil
}

// SetReadOnly toggles the finalized view.
func (g *TimetableGrid) SetReadOnly(readOnly bool) {
	g.readOnly = readOnly
}

// ReadOnly reports whether the grid is locked.
func (g *TimetableGrid) ReadOnly() bool {
	return g.readOnly
}

// Len returns the number of occupied cells.
func (g *TimetableGrid) Len() int {
	return len(g.entries)
}

// Entries returns the occupied cells ordered by day, then slot.
func (g *TimetableGrid) Entries() []models.PlacedEntry {
	keys := make([]models.SlotKey, 0, len(g.entries))
	for key := range g.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Day != keys[j].Day {
			return keys[i].Day < keys[j].Day
		}
		return keys[i].Slot < keys[j].Slot
	})

	out := make([]models.PlacedEntry, 0, len(keys))
	for _, key := range keys {
		slot := g.slots[key.Slot]
		out = append(out, models.PlacedEntry{
			Day:      key.Day,
			Slot:     key.Slot,
			TimeSlot: slot.Label,
			Time:     slot.Time,
			Entry:    g.entries[key],
		})
	}
	return out
}

func (g *TimetableGrid) checkWritable(key models.SlotKey) error {
	if g.readOnly {
		return appErrors.Clone(appErrors.ErrFinalized, "timetable is final and read-only")
	}
	if _, err := g.Key(key.Day, key.Slot); err != nil {
		return err
	}
	if g.slots[key.Slot].IsBreak {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is a break and cannot hold lessons", g.slots[key.Slot].Label))
	}
	return nil
}
