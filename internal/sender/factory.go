package sender

import (
	"fmt"
	"strings"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/logger"
)

// NewSender creates the transport selected by cfg.SenderType.
func NewSender(cfg *config.Config) (Sender, error) {
	log := logger.WithComponent("sender-factory")

	senderType := strings.ToLower(cfg.SenderType)
	if senderType == "" {
		senderType = config.SenderHTTP
	}

	log.Info().
		Str("sender_type", senderType).
		Bool("socks_proxy", cfg.SOCKSProxy.Enabled()).
		Msg("Creating sender")

	switch senderType {
	case config.SenderHTTP:
		log.Info().Str("endpoint", cfg.EndpointURI).Msg("Creating HTTP sender")
		return NewHTTPSender(cfg.EndpointURI, cfg.HTTP, cfg.SOCKSProxy)
	case config.SenderKafkaRest:
		log.Info().
			Str("kafkarest_addr", cfg.KafkaRest.Address).
			Str("topic", cfg.KafkaRest.Topic).
			Msg("Creating KafkaRest sender")
		return NewKafkaRestSender(cfg.KafkaRest, cfg.HTTP, cfg.SOCKSProxy)
	case config.SenderKafka:
		return NewKafkaSender(cfg.Kafka, cfg.SOCKSProxy)
	case config.SenderRedis:
		return NewRedisSender(cfg.Redis, cfg.SOCKSProxy)
	case config.SenderFile:
		return NewFileSender(cfg.File)
	default:
		return nil, fmt.Errorf("unknown sender type: %s (supported: http, kafkarest, kafka, redis, file)", senderType)
	}
}
