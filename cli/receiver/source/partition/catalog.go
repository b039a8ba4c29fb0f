package partition

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	log "github.com/sirupsen/logrus"
)

type Lister interface {
	List(ctx context.Context) ([]types.PartitionRange, error)
}

// Catalog копия реестра секций в памяти для выбора секции при записи
type Catalog struct {
	source Lister

	mu     sync.RWMutex
	ranges []types.PartitionRange
}

func NewCatalog(source Lister) *Catalog {
	return &Catalog{source: source}
}

// Reload перечитывает реестр. При ошибке остаётся прежнее состояние.
func (c *Catalog) Reload(ctx context.Context) error {
	ranges, err := c.source.List(ctx)
	if err != nil {
		return err
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].From.Before(ranges[j].From) })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].From.Before(ranges[i-1].To) {
			return fmt.Errorf("%s и %s: %w", ranges[i-1].Name, ranges[i].Name, ErrPartitionOverlap)
		}
	}

	c.mu.Lock()
	c.ranges = ranges
	c.mu.Unlock()

	log.WithField("partitions", len(ranges)).Debug("Реестр секций загружен")
	return nil
}

// Resolve возвращает проиндексированную секцию, покрывающую recordedAt
func (c *Catalog) Resolve(recordedAt time.Time) (types.PartitionRange, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := sort.Search(len(c.ranges), func(i int) bool { return c.ranges[i].To.After(recordedAt) })
	if i < len(c.ranges) {
		r := c.ranges[i]
		if r.Covers(recordedAt) && r.State == types.PartitionStateIndexed {
			return r, nil
		}
	}
	return types.PartitionRange{}, domain.ErrNoPartitionForTimestamp
}

func (c *Catalog) Ranges() []types.PartitionRange {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ranges := make([]types.PartitionRange, len(c.ranges))
	copy(ranges, c.ranges)
	return ranges
}
