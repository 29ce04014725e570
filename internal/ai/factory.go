// factory.go - Engine factory for creating provider instances

package ai

import (
	"context"
	"fmt"

	"github.com/bosocmputer/deepseek_ocr_service/configs"
	"github.com/bosocmputer/deepseek_ocr_service/internal/ratelimit"
	log "github.com/sirupsen/logrus"
)

// CreateEngine creates an inference engine based on configuration
func CreateEngine(ctx context.Context) (Engine, error) {
	limiter := ratelimit.NewRateLimiter(configs.ENGINE_RATE_PER_MINUTE)

	switch configs.ENGINE_PROVIDER {
	case "http":
		log.WithField("url", configs.INFERENCE_URL).Info("🔵 Creating HTTP inference engine")
		if limiter != nil {
			log.Warn("ENGINE_RATE_PER_MINUTE is ignored by the http engine")
		}
		return NewHTTPEngine(
			configs.INFERENCE_URL,
			configs.INFERENCE_HEALTH_URL,
			configs.INFERENCE_AUTH_TOKEN,
			configs.MAX_CONCURRENT_OCR_TASKS,
		), nil

	case "gemini":
		log.WithField("model", configs.MODEL_NAME).Info("🔷 Creating Gemini inference engine")
		return NewGeminiEngine(ctx, configs.GEMINI_API_KEY, configs.MODEL_NAME, limiter)

	default:
		return nil, fmt.Errorf("unsupported engine provider: %s (supported: http, gemini)", configs.ENGINE_PROVIDER)
	}
}
