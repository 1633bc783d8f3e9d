package automation

import (
	"context"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	weatherTTL      = 5 * time.Minute
	weatherCacheKey = "weather"
)

// weatherContext reads the first available weather entity. Lookups are cached.
func (e *Engine) weatherContext(ctx context.Context) *model.WeatherContext {
	if !e.cfg.WeatherContext {
		return nil
	}
	if cached, ok := e.weather.Get(weatherCacheKey); ok {
		return cached.(*model.WeatherContext)
	}
	states, err := e.platform.States(ctx)
	if err != nil {
		e.logger.Warn("unable to read weather context", zap.Error(err))
		return nil
	}
	entity, ok := lo.Find(states, func(s model.Entity) bool {
		return s.Domain() == model.DomainWeather && s.State != model.StateUnavailable
	})
	if !ok {
		e.weather.Set(weatherCacheKey, (*model.WeatherContext)(nil), cache.DefaultExpiration)
		return nil
	}
	w := &model.WeatherContext{
		Condition:   entity.State,
		Temperature: entity.Attributes.Temperature,
		Humidity:    entity.Attributes.Humidity,
		WindSpeed:   entity.Attributes.WindSpeed,
		Pressure:    entity.Attributes.Pressure,
	}
	e.weather.Set(weatherCacheKey, w, cache.DefaultExpiration)
	return w
}
