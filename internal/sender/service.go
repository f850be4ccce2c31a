package sender

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"congratbot/internal/content"
	"congratbot/internal/runtime/supervisor"
	"congratbot/internal/transport"
	logx "congratbot/pkg/logx"
)

// defaultName substitutes an absent/empty name in generation commands.
const defaultName = "Безымянная"

type Config struct {
	// CheckInterval is the supervisor cycle cadence. Default 1s.
	CheckInterval time.Duration
	// DefaultRepeatDelay is the raw fallback delay for configure commands
	// that omit one. Default "15m".
	DefaultRepeatDelay string

	PollingQueueSize  int
	GenerateQueueSize int
}

// DispatchRecorder receives a record of every successful dispatch.
// Implementations must tolerate concurrent calls.
type DispatchRecorder interface {
	RecordDispatch(ctx context.Context, chat int64, name string, kind string, at time.Time) error
}

// Service is the sender core: it owns the two command queues and the job
// registry, and runs the supervisor cycle that drains one command per queue
// per cycle.
type Service struct {
	cfg      Config
	log      logx.Logger
	adapter  transport.Adapter
	provider content.Provider
	recorder DispatchRecorder // may be nil

	registry *Registry
	polling  *Queue[PollingCommand]
	generate *Queue[GenerateCommand]

	// interval is read fresh every cycle so config reloads apply live.
	interval atomic.Int64
	// fallback is slept by runners whose delay is still unset.
	fallback time.Duration

	mu      sync.Mutex
	sup     *supervisor.Supervisor
	running bool
}

func New(cfg Config, adapter transport.Adapter, provider content.Provider, parseDelay DelayParser, recorder DispatchRecorder, log logx.Logger) *Service {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Second
	}
	s := &Service{
		cfg:      cfg,
		log:      log,
		adapter:  adapter,
		provider: provider,
		recorder: recorder,
		polling:  NewQueue[PollingCommand]("polling", cfg.PollingQueueSize, log),
		generate: NewQueue[GenerateCommand]("generate", cfg.GenerateQueueSize, log),
		fallback: fallbackDelay,
	}
	s.interval.Store(int64(cfg.CheckInterval))
	s.registry = NewRegistry(log, parseDelay, cfg.DefaultRepeatDelay, s.notifyChat)
	return s
}

// Registry exposes the job registry (used by tests and status surfaces).
func (s *Service) Registry() *Registry { return s.registry }

// Backlog reports the queued command counts (polling, generate).
func (s *Service) Backlog() (int, int) { return s.polling.Len(), s.generate.Len() }

// ActiveJobs returns the number of running sender jobs.
func (s *Service) ActiveJobs() int { return s.registry.Len() }

// EnqueuePolling queues a control command for the next cycles.
// A correlation ID is assigned if the command has none.
func (s *Service) EnqueuePolling(cmd PollingCommand) bool {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	return s.polling.Push(cmd)
}

// EnqueueGenerate queues a one-shot generation command.
func (s *Service) EnqueueGenerate(cmd GenerateCommand) bool {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	return s.generate.Push(cmd)
}

// Start spawns the supervisor cycle. Idempotent while running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(s.log))
	s.registry.Bind(s.sup, s.runJob)
	// The cycle must outlive any single crash: a fault in one command's
	// handling restarts the loop instead of halting command processing.
	s.sup.GoRestart("sender.cycle", s.checkInterval(), s.cycleLoop)
	s.running = true
	s.log.Info("sender started", logx.Duration("check_interval", s.checkInterval()))
	return nil
}

// Stop cancels the cycle and every job runner, then waits for all of them to
// unwind. After Stop returns no further cycle runs and no dispatch happens.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.running = false
	s.mu.Unlock()

	if sup == nil {
		return nil
	}
	sup.Cancel()
	s.registry.StopAll()
	err := sup.Wait(ctx)
	s.log.Info("sender stopped")
	return err
}

// Apply updates the live-tunable settings (currently the cycle cadence).
func (s *Service) Apply(cfg Config) {
	if cfg.CheckInterval > 0 {
		s.interval.Store(int64(cfg.CheckInterval))
	}
}

func (s *Service) checkInterval() time.Duration {
	return time.Duration(s.interval.Load())
}

func (s *Service) cycleLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.checkInterval()):
		}
		// Polling commands are applied before generation commands within one
		// cycle, unconditionally.
		s.pollOne(ctx)
		s.generateOne(ctx)
	}
}

// pollOne drains at most one polling command per cycle.
func (s *Service) pollOne(ctx context.Context) {
	cmd, ok := s.polling.TryPop()
	if !ok {
		return
	}
	log := s.log.With(
		logx.String("cmd_id", cmd.ID.String()),
		logx.String("op", cmd.Op.String()),
		logx.Int64("chat_id", int64(cmd.Chat)),
	)
	switch cmd.Op {
	case OpStart:
		if !s.registry.Start(cmd.Chat) {
			log.Debug("start ignored (job already active)")
		}
	case OpStop:
		if !s.registry.Stop(cmd.Chat) {
			log.Debug("stop ignored (no active job)")
		}
	case OpConfigure:
		// Names first, then delay; each applied independently.
		s.registry.SetNames(ctx, cmd.Chat, cmd.NamesRaw)
		s.registry.SetDelay(cmd.Chat, cmd.DelayRaw)
		log.Debug("configure applied")
	default:
		log.Warn("unknown polling command")
	}
}

// generateOne drains at most one generation command per cycle and dispatches
// it immediately. Errors are logged and never stop the cycle.
func (s *Service) generateOne(ctx context.Context) {
	cmd, ok := s.generate.TryPop()
	if !ok {
		return
	}
	err := s.send(ctx, cmd.Chat, cmd.Name, cmd.Kind)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("generation dispatch failed",
			logx.String("cmd_id", cmd.ID.String()),
			logx.String("kind", cmd.Kind.String()),
			logx.Int64("chat_id", int64(cmd.Chat)),
			logx.Err(err),
		)
	}
}

// send generates a card for name and delivers it to chat according to kind.
func (s *Service) send(ctx context.Context, chat ChatID, name string, kind GenerateKind) error {
	if name == "" {
		name = defaultName
	}
	card, err := s.provider.Generate(ctx, name)
	if err != nil {
		return err
	}

	to := transport.ChatTarget{ChatID: int64(chat)}
	if kind != KindText {
		if err := s.adapter.SendPhoto(ctx, to, card.Image, ""); err != nil {
			return err
		}
	}
	if kind != KindPicture {
		if err := s.adapter.SendText(ctx, to, card.Text, nil); err != nil {
			return err
		}
	}

	if s.recorder != nil {
		if err := s.recorder.RecordDispatch(ctx, int64(chat), name, kind.String(), time.Now()); err != nil {
			s.log.Debug("dispatch history write failed", logx.Int64("chat_id", int64(chat)), logx.Err(err))
		}
	}
	return nil
}

// notifyChat delivers a user-facing error message, best effort.
func (s *Service) notifyChat(ctx context.Context, chat ChatID, text string) {
	to := transport.ChatTarget{ChatID: int64(chat)}
	if err := s.adapter.SendText(ctx, to, text, nil); err != nil {
		s.log.Warn("user notification failed", logx.Int64("chat_id", int64(chat)), logx.Err(err))
	}
}
