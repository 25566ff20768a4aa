package registry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nwtelemetry/huboffload/internal/database"
	"github.com/nwtelemetry/huboffload/internal/models"
	"github.com/nwtelemetry/huboffload/pkg/checksum"
)

// Service manages the scrape list. The registry is the single source of
// truth for which NAS devices a sweep visits; removal is a soft delete so
// historical usage rows keep their owner.
type Service struct {
	store database.Store
}

func NewService(store database.Store) *Service {
	return &Service{store: store}
}

func (s *Service) List() ([]models.Device, error) {
	return s.store.ListDevices()
}

func (s *Service) Get(nasID string) (*models.Device, error) {
	return s.store.GetDevice(strings.TrimSpace(nasID))
}

func (s *Service) Add(nasID, name, notes string) (*models.Device, error) {
	nasID = strings.TrimSpace(nasID)
	if nasID == "" {
		return nil, errors.New("nas id is required")
	}
	if name == "" {
		name = nasID
	}

	existing, err := s.store.GetDevice(nasID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing device %s: %w", nasID, err)
	}
	if existing != nil && existing.Active {
		return nil, fmt.Errorf("device %s is already registered", nasID)
	}

	return s.store.AddDevice(nasID, name, notes)
}

func (s *Service) Remove(nasID string) error {
	nasID = strings.TrimSpace(nasID)
	if nasID == "" {
		return errors.New("nas id is required")
	}
	return s.store.RemoveDevice(nasID)
}

type seedDevice struct {
	NasID string `yaml:"nas_id"`
	Name  string `yaml:"name"`
	Notes string `yaml:"notes"`
}

type seedFile struct {
	Devices []seedDevice `yaml:"devices"`
}

// SeedFromFile registers every device listed in a YAML seed file, skipping
// ones already active in the registry. Returns the number of devices added.
func (s *Service) SeedFromFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if len(seed.Devices) == 0 {
		return 0, fmt.Errorf("seed file %s lists no devices", path)
	}

	if sum, err := checksum.GetFileChecksum(path); err == nil {
		log.Printf("Seeding registry from %s (checksum %s)", path, sum)
	}

	added := 0
	for _, entry := range seed.Devices {
		device, err := s.Add(entry.NasID, entry.Name, entry.Notes)
		if err != nil {
			log.Printf("Skipping seed entry %q: %v", entry.NasID, err)
			continue
		}
		log.Printf("Registered device %s (%s)", device.NasID, device.Name)
		added++
	}
	return added, nil
}
