package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"frontdesk/agent/agents/orchestrator"
	"frontdesk/agent/classify"
	"frontdesk/agent/contract"
	"frontdesk/agent/gateway"
	"frontdesk/agent/handlers"
	"frontdesk/agent/llm"
	"frontdesk/agent/prompt"
	"frontdesk/agent/routing"
	"frontdesk/agent/scheduling"
	statex "frontdesk/agent/state"
	configx "frontdesk/pkg/config"
	_ "frontdesk/pkg/logger/autoload"
	openrouterx "frontdesk/pkg/openrouter"
	qstashx "frontdesk/pkg/qstash"
)

type AppConfig struct {
	// GatewayMode selects the ServiceGateway implementation once at startup:
	// "memory" or "postgres". Call sites never branch on it.
	GatewayMode string `envconfig:"GATEWAY_MODE" split_words:"true" default:"memory"`
	// StateStore selects conversation state persistence: "memory" or "redis".
	StateStore string `envconfig:"STATE_STORE" split_words:"true" default:"memory"`
	// CallbackWebhook, when set, enables QStash delivery of callback notices.
	CallbackWebhook string `envconfig:"CALLBACK_WEBHOOK" split_words:"true"`
}

func main() {
	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("")

	gw := buildGateway(ctx, appCfg.GatewayMode)
	store := buildStateStore(appCfg.StateStore)
	classifier := buildClassifier(ctx)
	publisher := buildPublisher(appCfg.CallbackWebhook)

	schedCfg := configx.MustNew[scheduling.Config]("SCHEDULING")
	registry := handlers.NewRegistry(
		handlers.NewBookingHandler(gw, scheduling.NewEngine(gw, *schedCfg)),
		handlers.NewRoutingHandler(routing.NewEngine(gw, publisher)),
		handlers.NewOfficeInfoHandler(gw),
		handlers.NewLeadHandler(gw),
		handlers.NewClarificationHandler(),
	)

	orchCfg := configx.MustNew[orchestrator.Config]("ORCHESTRATOR")
	agent, err := orchestrator.New(store, classifier, registry, *orchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	runCallLoop(ctx, agent)
}

func buildGateway(ctx context.Context, mode string) gateway.ServiceGateway {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "memory":
		log.Info().Msg("using in-memory gateway with demo data")
		return gateway.NewDemoGateway()
	case "postgres":
		pgCfg := configx.MustNew[gateway.PostgresConfig]("POSTGRES")
		gw, err := gateway.NewPostgresGateway(*pgCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build postgres gateway")
		}
		if err := gw.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate postgres schema")
		}
		return gw
	default:
		log.Fatal().Str("mode", mode).Msg("unknown gateway mode")
		return nil
	}
}

func buildStateStore(mode string) statex.Store {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "memory":
		return statex.NewMemoryStore()
	case "redis":
		redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build redis state store")
		}
		return store
	default:
		log.Fatal().Str("mode", mode).Msg("unknown state store mode")
		return nil
	}
}

func buildClassifier(ctx context.Context) contract.Classifier {
	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}
	prompts := prompt.LoadPromptSet()

	var providers []classify.Provider

	primaryCfg := llmCfg.OpenRouterFor(llm.RolePrimary)
	chatModel, err := primaryCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build primary chat model")
	}
	primary, err := classify.NewEinoProvider(ctx, "primary", chatModel, prompts.Classifier)
	if err != nil {
		log.Fatal().Err(err).Msg("build primary classifier provider")
	}
	providers = append(providers, primary)

	if strings.TrimSpace(llmCfg.SecondaryModel) != "" {
		secondaryCfg := llmCfg.OpenRouterFor(llm.RoleSecondary)
		client := openrouterx.NewClient(secondaryCfg)
		if client == nil {
			log.Fatal().Msg("build secondary openrouter client")
		}
		secondary, err := classify.NewOpenAIProvider("secondary", client, secondaryCfg.Model, prompts.Classifier)
		if err != nil {
			log.Fatal().Err(err).Msg("build secondary classifier provider")
		}
		providers = append(providers, secondary)
	}

	classifyCfg := configx.MustNew[classify.Config]("CLASSIFIER")
	return classify.NewTiered(*classifyCfg, classify.NewChain(*classifyCfg, providers...))
}

func buildPublisher(webhook string) contract.CallbackPublisher {
	webhook = strings.TrimSpace(webhook)
	if webhook == "" {
		return nil
	}
	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	publisher, err := routing.NewQStashPublisher(qstashx.MustNew(*qstashCfg), webhook)
	if err != nil {
		log.Fatal().Err(err).Msg("build callback publisher")
	}
	return publisher
}

// runCallLoop simulates one phone call on stdin: each line is a caller
// turn, the reply is printed, and a farewell hangs up.
func runCallLoop(ctx context.Context, agent *orchestrator.Orchestrator) {
	callID := uuid.NewString()

	reply, _, err := agent.HandleTurn(ctx, callID, "")
	if err != nil {
		log.Fatal().Err(err).Msg("open call")
	}
	fmt.Println(reply)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		reply, ended, err := agent.HandleTurn(ctx, callID, scanner.Text())
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			continue
		}
		fmt.Println(reply)
		if ended {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("read stdin")
	}
}
