// Package memory implementación en memoria de la persistencia de pases para pruebas y entornos
// efímeros (STORAGE=memory). Cada transacción trabaja sobre una copia del estado y la publica solo
// si fn termina sin error.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

type state struct {
	records map[string]*entity.MovementRecord
	links   map[entity.DocumentRef]string
	tasks   map[string]*entity.AutoCreateTask
}

func newState() state {
	return state{
		records: make(map[string]*entity.MovementRecord),
		links:   make(map[entity.DocumentRef]string),
		tasks:   make(map[string]*entity.AutoCreateTask),
	}
}

func (s state) clone() state {
	c := state{
		records: make(map[string]*entity.MovementRecord, len(s.records)),
		links:   make(map[entity.DocumentRef]string, len(s.links)),
		tasks:   make(map[string]*entity.AutoCreateTask, len(s.tasks)),
	}
	for k, v := range s.records {
		c.records[k] = v.Clone()
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.tasks {
		t := *v
		c.tasks[k] = &t
	}
	return c
}

// Store almacén en memoria. Run serializa las transacciones con un único mutex, lo que equivale a
// tomar todos los bloqueos del libro de asignación a la vez.
type Store struct {
	mu    sync.RWMutex
	state state
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Run ejecuta fn sobre una copia del estado y la publica si no hay error.
func (s *Store) Run(ctx context.Context, fn func(
	recordRepo repository.MovementRecordRepository,
	allocRepo repository.AllocationRepository,
	linkRepo repository.ParentLinkRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	tx := &binding{tx: &working}
	if err := fn(&recordRepo{b: tx}, &allocationRepo{b: tx}, &linkRepo{b: tx}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Records repositorio de pases fuera de transacción.
func (s *Store) Records() repository.MovementRecordRepository {
	return &recordRepo{b: &binding{store: s}}
}

// Links índice documento origen -> pase fuera de transacción (solo lectura en la práctica).
func (s *Store) Links() repository.ParentLinkRepository {
	return &linkRepo{b: &binding{store: s}}
}

// Tasks repositorio de tareas de creación automática.
func (s *Store) Tasks() repository.AutoCreateTaskRepository {
	return &taskRepo{b: &binding{store: s}}
}

// binding ata un repositorio al estado de una transacción abierta o al del almacén.
// Dentro de Run el mutex ya está tomado.
type binding struct {
	store *Store
	tx    *state
}

func (b *binding) read(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	return fn(&b.store.state)
}

func (b *binding) write(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	working := b.store.state.clone()
	if err := fn(&working); err != nil {
		return err
	}
	b.store.state = working
	return nil
}
