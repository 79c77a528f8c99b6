package memory

import (
	"context"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
)

func auxKeyOf(pk datum.DatumAuxiliaryPK) auxKey {
	return auxKey{pk.StreamID, pk.Kind, nanos(pk.Timestamp)}
}

func (s *Store) StoreAuxiliary(ctx context.Context, a *datum.DatumAuxiliary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneAux(a)
	c.Updated = s.clock.Now()
	s.aux[auxKeyOf(a.DatumAuxiliaryPK)] = c
	return nil
}

func (s *Store) GetAuxiliary(ctx context.Context, pk datum.DatumAuxiliaryPK) (*datum.DatumAuxiliary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.aux[auxKeyOf(pk)]
	if !exists {
		return nil, nil
	}
	return cloneAux(a), nil
}

func (s *Store) MoveAuxiliary(ctx context.Context, from, to datum.DatumAuxiliaryPK) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.aux[auxKeyOf(from)]
	if !exists {
		return false, nil
	}
	delete(s.aux, auxKeyOf(from))
	a.DatumAuxiliaryPK = to
	a.Updated = s.clock.Now()
	s.aux[auxKeyOf(to)] = a
	return true, nil
}

func (s *Store) DeleteAuxiliary(ctx context.Context, pk datum.DatumAuxiliaryPK) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.aux[auxKeyOf(pk)]; !exists {
		return false, nil
	}
	delete(s.aux, auxKeyOf(pk))
	return true, nil
}

func (s *Store) FindAuxiliaryFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.DatumAuxiliary], error) {
	if c == nil {
		c = &criteria.DatumCriteria{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []datum.DatumAuxiliary
	for _, a := range s.aux {
		if c.AuxiliaryKind() != "" && a.Kind != c.AuxiliaryKind() {
			continue
		}
		if !s.selectStream(c, a.StreamID, false) || !s.inRange(c, a.StreamID, a.Timestamp) {
			continue
		}
		rows = append(rows, *cloneAux(a))
	}
	s.sortRows(c.Sorts(), len(rows), func(i int) sortRow {
		return sortRow{rows[i].StreamID, rows[i].Timestamp}
	}, func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	return page(rows, c), nil
}
