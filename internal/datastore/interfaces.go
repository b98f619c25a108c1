// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raceday/raceday-go/internal/conf"
	"github.com/raceday/raceday-go/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations the rest of the application may perform on durable state.
type Interface interface {
	Open() error
	Close() error

	SaveCircuit(circuit *Circuit) error
	SaveRace(race *Race) error
	GetRace(id string) (Race, error)
	GetRaces(season string) ([]Race, error)
	GetRacesByCircuit(circuitID string) ([]Race, error)
	Clear() error

	GetPreferences() (*Preferences, error)
	SavePreferences(prefs *Preferences) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	if settings.Store.SQLite.Enabled {
		return &SQLiteStore{Settings: settings}
	}
	return nil
}

// SaveCircuit inserts a circuit or overwrites the existing record with the
// same identifier. Upserts are idempotent aside from the UpdatedAt bump.
func (ds *DataStore) SaveCircuit(circuit *Circuit) error {
	if ds.DB == nil {
		return errUninitialized("save_circuit")
	}
	if circuit.ID == "" {
		return errors.Newf("circuit is missing an identifier").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	circuit.UpdatedAt = time.Now()
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "locality", "country", "updated_at"}),
	}).Create(circuit).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_circuit").
			Context("circuit_id", circuit.ID).
			Build()
	}
	return nil
}

// raceUpdateColumns lists the Race columns overwritten on upsert. The row
// itself and its CreatedAt survive; identity never changes.
var raceUpdateColumns = []string{
	"season", "round", "name", "circuit_id",
	"date", "time",
	"first_practice_date", "first_practice_time",
	"second_practice_date", "second_practice_time",
	"third_practice_date", "third_practice_time",
	"qualifying_date", "qualifying_time",
	"sprint_date", "sprint_time",
	"updated_at",
}

// SaveRace inserts a race or overwrites the existing record with the same
// "{season}-{round}" identifier. A race without a circuit reference is
// rejected, the store never holds a race that cannot resolve its venue.
func (ds *DataStore) SaveRace(race *Race) error {
	if ds.DB == nil {
		return errUninitialized("save_race")
	}
	if race.ID == "" {
		return errors.Newf("race is missing an identifier").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if race.CircuitID == "" {
		return errors.Newf("race %s has no circuit reference", race.ID).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("race_id", race.ID).
			Build()
	}

	// Avoid writing the association, the circuit row is upserted separately
	race.Circuit = nil
	race.UpdatedAt = time.Now()
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(raceUpdateColumns),
	}).Create(race).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_race").
			Context("race_id", race.ID).
			Build()
	}
	return nil
}

// GetRace retrieves a race by its identifier with the circuit resolved.
// A race whose circuit row is missing is reported as not found rather than
// returned with a nil venue.
func (ds *DataStore) GetRace(id string) (Race, error) {
	if ds.DB == nil {
		return Race{}, errUninitialized("get_race")
	}

	var race Race
	err := ds.DB.Preload("Circuit").First(&race, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Race{}, errors.Newf("race not found: %s", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("race_id", id).
				Build()
		}
		return Race{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_race").
			Context("race_id", id).
			Build()
	}
	if race.Circuit == nil {
		return Race{}, errors.Newf("race %s references unknown circuit %s", id, race.CircuitID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("race_id", id).
			Build()
	}
	return race, nil
}

// GetRaces lists races with circuits resolved. With a season given, only that
// season's races ordered by round ascending; otherwise all races ordered by
// season descending then round ascending. Races whose circuit row is missing
// are excluded.
func (ds *DataStore) GetRaces(season string) ([]Race, error) {
	if ds.DB == nil {
		return nil, errUninitialized("get_races")
	}

	query := ds.DB.
		Joins("JOIN circuits ON circuits.id = races.circuit_id").
		Preload("Circuit")

	if season != "" {
		query = query.Where("races.season = ?", season).
			Order("CAST(races.round AS INTEGER) ASC")
	} else {
		query = query.Order("CAST(races.season AS INTEGER) DESC").
			Order("CAST(races.round AS INTEGER) ASC")
	}

	var races []Race
	if err := query.Find(&races).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_races").
			Context("season", season).
			Build()
	}
	return races, nil
}

// GetRacesByCircuit lists all races hosted at a circuit across seasons,
// newest season first. Convenience index for favorites filtering.
func (ds *DataStore) GetRacesByCircuit(circuitID string) ([]Race, error) {
	if ds.DB == nil {
		return nil, errUninitialized("get_races_by_circuit")
	}

	var races []Race
	err := ds.DB.
		Joins("JOIN circuits ON circuits.id = races.circuit_id").
		Preload("Circuit").
		Where("races.circuit_id = ?", circuitID).
		Order("CAST(races.season AS INTEGER) DESC").
		Order("CAST(races.round AS INTEGER) ASC").
		Find(&races).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_races_by_circuit").
			Context("circuit_id", circuitID).
			Build()
	}
	return races, nil
}

// Clear deletes all race and circuit records in one transaction. Preferences
// survive a cache clear.
func (ds *DataStore) Clear() error {
	if ds.DB == nil {
		return errUninitialized("clear")
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Race{}).Error; err != nil {
			return fmt.Errorf("deleting races: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&Circuit{}).Error; err != nil {
			return fmt.Errorf("deleting circuits: %w", err)
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "clear").
			Build()
	}
	return nil
}

// GetPreferences returns the singleton preferences row, creating it with
// defaults on first access.
func (ds *DataStore) GetPreferences() (*Preferences, error) {
	if ds.DB == nil {
		return nil, errUninitialized("get_preferences")
	}

	prefs := defaultPreferences()
	err := ds.DB.Where(Preferences{ID: PreferencesID}).
		Attrs(*prefs).
		FirstOrCreate(prefs).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_preferences").
			Build()
	}
	return prefs, nil
}

// SavePreferences persists the singleton preferences row. The identifier is
// forced to the sentinel so callers cannot create a second row.
func (ds *DataStore) SavePreferences(prefs *Preferences) error {
	if ds.DB == nil {
		return errUninitialized("save_preferences")
	}

	prefs.ID = PreferencesID
	prefs.UpdatedAt = time.Now()
	if err := ds.DB.Save(prefs).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_preferences").
			Build()
	}
	return nil
}

func defaultPreferences() *Preferences {
	return &Preferences{
		ID:                   PreferencesID,
		NotificationsEnabled: true,
		NotificationOffsets:  "1h-before",
		NotificationKinds:    strings.Join([]string{"race", "qualifying", "sprint"}, ","),
		SoundEnabled:         true,
		Theme:                "system",
		ShowCompletedRaces:   false,
		TimeZoneMode:         "local",
		AutoRefreshEnabled:   true,
		AutoRefreshMinutes:   60,
	}
}

func errUninitialized(operation string) error {
	return errors.Newf("database connection is not initialized").
		Component("datastore").
		Category(errors.CategoryState).
		Context("operation", operation).
		Build()
}
