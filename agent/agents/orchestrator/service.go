package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"

	"frontdesk/agent/contract"
	"frontdesk/agent/extract"
	nodex "frontdesk/agent/nodes/orchestrator"
	"frontdesk/agent/respond"
	statex "frontdesk/agent/state"
)

var (
	ErrInvalidCallID = nodex.ErrInvalidCallID
	ErrCallEnded     = nodex.ErrCallEnded
)

const defaultGreeting = "Buongiorno, ha chiamato lo Studio Rossi. Sono l'assistente del centralino, come posso aiutarla?"

type Config struct {
	Greeting     string        `envconfig:"GREETING" split_words:"true"`
	MaxTurns     int           `envconfig:"MAX_TURNS" split_words:"true" default:"20"`
	MaxHistory   int           `envconfig:"MAX_HISTORY" split_words:"true" default:"12"`
	HistoryTurns int           `envconfig:"HISTORY_TURNS" split_words:"true" default:"4"`
	CharBudget   int           `envconfig:"CHAR_BUDGET" split_words:"true" default:"320"`
	TurnTimeout  time.Duration `envconfig:"TURN_TIMEOUT" split_words:"true" default:"20s"`
}

// Orchestrator owns the per-call turn loop. Turns of one call are processed
// strictly one at a time; different calls run concurrently and share
// nothing but the stores behind the interfaces.
type Orchestrator struct {
	store      statex.Store
	classifier contract.Classifier
	registry   contract.Registry
	extractor  *extract.Extractor
	composer   *respond.Composer

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	greeting     string
	maxTurns     int
	maxHistory   int
	historyTurns int
	turnTimeout  time.Duration

	mu        sync.Mutex
	callLocks map[string]*sync.Mutex

	now func() time.Time
}

func New(
	store statex.Store,
	classifier contract.Classifier,
	registry contract.Registry,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if registry == nil {
		return nil, errors.New("handler registry is required")
	}

	greeting := strings.TrimSpace(cfg.Greeting)
	if greeting == "" {
		greeting = defaultGreeting
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 20
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 12
	}
	historyTurns := cfg.HistoryTurns
	if historyTurns <= 0 {
		historyTurns = 4
	}
	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = 20 * time.Second
	}

	o := &Orchestrator{
		store:        store,
		classifier:   classifier,
		registry:     registry,
		extractor:    extract.New(),
		composer:     respond.New(cfg.CharBudget),
		greeting:     greeting,
		maxTurns:     maxTurns,
		maxHistory:   maxHistory,
		historyTurns: historyTurns,
		turnTimeout:  turnTimeout,
		callLocks:    make(map[string]*sync.Mutex),
		now:          time.Now,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner
	return o, nil
}

// HandleTurn processes one caller turn and returns the reply plus whether
// the call has ended. An empty utterance on a brand-new call yields the
// greeting.
func (o *Orchestrator) HandleTurn(ctx context.Context, callID, utterance string) (string, bool, error) {
	lock := o.lockFor(strings.TrimSpace(callID))
	if lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{CallID: callID, Utterance: utterance})
	if err != nil {
		return "", false, err
	}
	if out.CallEnded {
		o.releaseLock(strings.TrimSpace(callID))
	}
	return out.Reply, out.CallEnded, nil
}

// lockFor hands out the per-call mutex that serializes turns of one call.
func (o *Orchestrator) lockFor(callID string) *sync.Mutex {
	if callID == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.callLocks[callID]
	if !ok {
		lock = &sync.Mutex{}
		o.callLocks[callID] = lock
	}
	return lock
}

func (o *Orchestrator) releaseLock(callID string) {
	if callID == "" {
		return
	}
	o.mu.Lock()
	delete(o.callLocks, callID)
	o.mu.Unlock()
}
