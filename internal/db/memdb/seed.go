package memdb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"dispatch-service/internal/models"
)

// Seed is the fixture format read by LoadSeed.
type Seed struct {
	Responders []models.Responder `json:"responders"`
	Owners     []models.Owner     `json:"owners"`
}

// LoadSeed adds the responders and owners described by r. Responders are
// inserted in order, so a duplicate badge fails after the earlier ones.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("failed to decode seed: %w", err)
	}
	for _, o := range seed.Owners {
		s.PutOwner(o)
	}
	for _, resp := range seed.Responders {
		if resp.Status == "" {
			resp.Status = models.Available
		}
		status, err := models.ParseAvailability(string(resp.Status))
		if err != nil {
			return fmt.Errorf("responder %s: %w", resp.BadgeNumber, err)
		}
		resp.Status = status
		if err := s.PutResponder(resp); err != nil {
			return err
		}
	}
	return nil
}

// LoadSeedFile opens path and passes it to LoadSeed.
func (s *Store) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}
