package conversation

import (
	"go.uber.org/zap"

	"github.com/spigell/skill-mapper/internal/logger"
)

// TransitionObserver is notified after every accepted state change.
type TransitionObserver func(from, to State)

// Machine applies state changes to conversations.
type Machine struct {
	logger   *zap.Logger
	observer TransitionObserver
}

func NewMachine(log *zap.Logger, observer TransitionObserver) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{logger: logger.Component(log, "state-machine"), observer: observer}
}

// Advance moves conv to the in-sequence successor of its current state.
func (m *Machine) Advance(conv *Conversation) (State, error) {
	current := conv.State()
	next, err := current.Next()
	if err != nil {
		m.logger.Error("cannot advance conversation",
			zap.String(logger.FieldConversation, conv.ID),
			zap.String(logger.FieldState, current.String()),
			zap.Error(err),
		)
		return current, err
	}
	if err := m.Transition(conv, next); err != nil {
		return conv.State(), err
	}
	return next, nil
}

// Transition moves conv to target if the edge is legal.
func (m *Machine) Transition(conv *Conversation, target State) error {
	from, err := conv.moveTo(target)
	if err != nil {
		m.logger.Error("rejected state transition",
			zap.String(logger.FieldConversation, conv.ID),
			zap.String("from", from.String()),
			zap.String("to", target.String()),
			zap.Error(err),
		)
		return err
	}

	m.logger.Info("state transition",
		zap.String(logger.FieldConversation, conv.ID),
		zap.String("from", from.String()),
		zap.String("to", target.String()),
		zap.String("phase", target.Phase()),
	)
	if m.observer != nil {
		m.observer(from, target)
	}
	return nil
}

// Finish walks conv along in-sequence edges until it is completed.
func (m *Machine) Finish(conv *Conversation) error {
	for conv.State() != StateCompleted {
		if _, err := m.Advance(conv); err != nil {
			return err
		}
	}
	return nil
}
