package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nwtelemetry/huboffload/internal/database"
	"github.com/nwtelemetry/huboffload/internal/models"
)

// fakeStore backs registry tests with an in-memory device map. Methods
// outside the registry surface are inherited from the embedded interface
// and never called.
type fakeStore struct {
	database.Store
	devices map[string]*models.Device
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{devices: map[string]*models.Device{}}
}

func (f *fakeStore) ListDevices() ([]models.Device, error) {
	var out []models.Device
	for _, d := range f.devices {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeStore) GetDevice(nasID string) (*models.Device, error) {
	d, ok := f.devices[nasID]
	if !ok {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (f *fakeStore) AddDevice(nasID, name, notes string) (*models.Device, error) {
	f.nextID++
	d := &models.Device{ID: f.nextID, NasID: nasID, Name: name, Notes: notes, Active: true}
	f.devices[nasID] = d
	copy := *d
	return &copy, nil
}

func (f *fakeStore) RemoveDevice(nasID string) error {
	if d, ok := f.devices[nasID]; ok {
		d.Active = false
	}
	return nil
}

func TestAdd(t *testing.T) {
	t.Run("should register a new device", func(t *testing.T) {
		svc := NewService(newFakeStore())

		device, err := svc.Add("site-01", "Depot uplink", "rooftop AP")

		assert.NoError(t, err)
		assert.Equal(t, "site-01", device.NasID)
		assert.Equal(t, "Depot uplink", device.Name)
		assert.True(t, device.Active)
	})

	t.Run("should default the name to the nas id", func(t *testing.T) {
		svc := NewService(newFakeStore())

		device, err := svc.Add("  site-02  ", "", "")

		assert.NoError(t, err)
		assert.Equal(t, "site-02", device.NasID)
		assert.Equal(t, "site-02", device.Name)
	})

	t.Run("should reject a duplicate active device", func(t *testing.T) {
		svc := NewService(newFakeStore())
		_, err := svc.Add("site-01", "first", "")
		assert.NoError(t, err)

		_, err = svc.Add("site-01", "second", "")

		assert.Error(t, err)
	})

	t.Run("should allow re-adding a removed device", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		_, err := svc.Add("site-01", "first", "")
		assert.NoError(t, err)
		assert.NoError(t, svc.Remove("site-01"))

		device, err := svc.Add("site-01", "second", "")

		assert.NoError(t, err)
		assert.True(t, device.Active)
	})

	t.Run("should reject an empty nas id", func(t *testing.T) {
		svc := NewService(newFakeStore())

		_, err := svc.Add("   ", "name", "")

		assert.Error(t, err)
	})
}

func TestSeedFromFile(t *testing.T) {
	writeSeed := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "devices.yaml")
		assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("should register every listed device", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		path := writeSeed(t, `
devices:
  - nas_id: site-01
    name: Depot uplink
    notes: rooftop AP
  - nas_id: site-02
    name: Yard gateway
`)

		added, err := svc.SeedFromFile(path)

		assert.NoError(t, err)
		assert.Equal(t, 2, added)
		devices, _ := store.ListDevices()
		assert.Len(t, devices, 2)
	})

	t.Run("should skip devices already registered", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		_, err := svc.Add("site-01", "existing", "")
		assert.NoError(t, err)
		path := writeSeed(t, `
devices:
  - nas_id: site-01
  - nas_id: site-02
`)

		added, err := svc.SeedFromFile(path)

		assert.NoError(t, err)
		assert.Equal(t, 1, added)
	})

	t.Run("should fail on an empty seed file", func(t *testing.T) {
		svc := NewService(newFakeStore())
		path := writeSeed(t, "devices: []\n")

		_, err := svc.SeedFromFile(path)

		assert.Error(t, err)
	})

	t.Run("should fail on unparseable yaml", func(t *testing.T) {
		svc := NewService(newFakeStore())
		path := writeSeed(t, "devices: [unterminated\n")

		_, err := svc.SeedFromFile(path)

		assert.Error(t, err)
	})
}
