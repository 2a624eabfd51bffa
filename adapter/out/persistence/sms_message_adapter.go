package persistence

import (
	"context"
	"errors"
	"fmt"

	"smsfilter/core/domain"
	"smsfilter/core/port/out"

	"github.com/rs/zerolog"
)

// MessageAdapter implements domain.MessageRepository. The working set is
// written to the shared store and mirrored to the process-local store, and is
// read back from the shared store first.
type MessageAdapter struct {
	shared out.KeyValueStore
	local  out.KeyValueStore
	log    zerolog.Logger
}

// NewMessageAdapter creates a new MessageAdapter. local may be nil.
func NewMessageAdapter(shared, local out.KeyValueStore, log zerolog.Logger) *MessageAdapter {
	return &MessageAdapter{
		shared: shared,
		local:  local,
		log:    log.With().Str("component", "message_store").Logger(),
	}
}

// Load returns the saved working set, or an empty slice when nothing usable is
// stored in either store.
func (a *MessageAdapter) Load(ctx context.Context) ([]domain.Message, error) {
	messages, found, sharedErr := a.loadFrom(ctx, a.shared)
	if found {
		return messages, nil
	}
	if a.local != nil {
		var localErr error
		messages, found, localErr = a.loadFrom(ctx, a.local)
		if found {
			return messages, nil
		}
		if sharedErr != nil && localErr != nil {
			return nil, errors.Join(sharedErr, localErr)
		}
	} else if sharedErr != nil {
		return nil, sharedErr
	}
	return []domain.Message{}, nil
}

// Save writes the working set to both stores. It fails only when neither
// write succeeds.
func (a *MessageAdapter) Save(ctx context.Context, messages []domain.Message) error {
	if messages == nil {
		messages = []domain.Message{}
	}
	sharedErr := writeJSON(ctx, a.shared, out.KeySavedMessages, messages)
	if sharedErr != nil {
		a.log.Warn().Err(sharedErr).Msg("saved messages not written to shared store")
	}
	if a.local == nil {
		return sharedErr
	}

	localErr := writeJSON(ctx, a.local, out.KeySavedMessages, messages)
	if localErr != nil {
		a.log.Warn().Err(localErr).Msg("saved messages not written to local store")
	}
	if sharedErr != nil && localErr != nil {
		return fmt.Errorf("save messages: %w", errors.Join(sharedErr, localErr))
	}
	return nil
}

func (a *MessageAdapter) loadFrom(ctx context.Context, store out.KeyValueStore) ([]domain.Message, bool, error) {
	var messages []domain.Message
	found, err := readJSON(ctx, store, out.KeySavedMessages, &messages)
	if errors.Is(err, ErrCorrupt) {
		a.log.Warn().Err(err).Msg("saved messages unreadable")
		return nil, false, nil
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("saved messages not readable from store")
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, true, nil
}
