package session

import (
	"context"
	"log/slog"
	"zentry/internal/model"
)

// State is the in-memory view of the session that UI code reacts to.
type State struct {
	LoggedIn bool
	UserID   string
	Role     model.Role
}

func (s State) IsStudent() bool { return s.LoggedIn && s.Role == model.RoleStudent }
func (s State) IsTeacher() bool { return s.LoggedIn && s.Role == model.RoleTeacher }

// State derives the current view from storage.
func (s *Store) State(ctx context.Context) State {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.stateLocked(ctx)
}

func (s *Store) stateLocked(ctx context.Context) State {
	rec, err := s.snapshotLocked(ctx)
	if err != nil {
		s.log.Warn("failed to read session state", slog.String("error", err.Error()))
		return State{}
	}
	if !rec.IsLoggedIn() {
		return State{}
	}
	return State{
		LoggedIn: true,
		UserID:   rec.UserID,
		Role:     model.ParseRole(rec.Role),
	}
}

// Subscribe delivers the new State on every LoggedOut <-> LoggedIn
// transition. A slow reader misses transitions once its buffer is full.
func (s *Store) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (s *Store) publish(before, after State) {
	if before.LoggedIn == after.LoggedIn {
		return
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for id, ch := range s.subs {
		select {
		case ch <- after:
		default:
			s.log.Warn("session subscriber is not keeping up, dropping transition",
				slog.Int("subscriber", id),
				slog.Bool("logged_in", after.LoggedIn))
		}
	}
}
