package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	openWeatherMapAPIBase = "https://api.openweathermap.org/data/2.5/weather"
	weatherTimeout        = 15 * time.Second
)

// WeatherTool answers current-conditions questions via OpenWeatherMap.
// The API reports Kelvin; results are converted to the requested unit.
type WeatherTool struct {
	apiKey      string
	apiBase     string
	defaultUnit string
	httpClient  *http.Client
}

func NewWeatherTool(apiKey, defaultUnit string) *WeatherTool {
	defaultUnit = strings.ToLower(strings.TrimSpace(defaultUnit))
	if defaultUnit != "fahrenheit" {
		defaultUnit = "celsius"
	}
	return &WeatherTool{
		apiKey:      strings.TrimSpace(apiKey),
		apiBase:     openWeatherMapAPIBase,
		defaultUnit: defaultUnit,
		httpClient:  &http.Client{Timeout: weatherTimeout},
	}
}

func (t *WeatherTool) Name() string {
	return "get_current_weather"
}

func (t *WeatherTool) Description() string {
	return "Get the current weather for a city. Use this whenever the user asks about weather conditions, temperature, or what to wear."
}

func (t *WeatherTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"location": map[string]interface{}{
				"type":        "string",
				"description": "City name, e.g. 'Paris' or 'Syracuse, NY'",
			},
			"unit": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"celsius", "fahrenheit"},
				"description": "Temperature unit for the response",
			},
		},
		"required": []string{"location"},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	location := strings.TrimSpace(stringArg(args, "location"))
	if location == "" {
		return ErrorResult("location is required")
	}
	if t.apiKey == "" {
		return ErrorResult("weather API key is not configured (set tools.weather.api_key or DOCCHAT_TOOLS_WEATHER_API_KEY)")
	}

	unit := strings.ToLower(strings.TrimSpace(stringArg(args, "unit")))
	if unit != "celsius" && unit != "fahrenheit" {
		unit = t.defaultUnit
	}

	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", t.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return ErrorResult(fmt.Sprintf("create weather request: %v", err)).WithError(err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return ErrorResult(fmt.Sprintf("weather request failed: %v", err)).WithError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrorResult(fmt.Sprintf("read weather response: %v", err)).WithError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return ErrorResult(fmt.Sprintf("weather lookup for %q failed: status=%d body=%s", location, resp.StatusCode, truncateLogString(string(raw))))
	}

	var payload struct {
		Name string `json:"name"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			TempMin   float64 `json:"temp_min"`
			TempMax   float64 `json:"temp_max"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ErrorResult(fmt.Sprintf("parse weather response: %v", err)).WithError(err)
	}

	description := ""
	if len(payload.Weather) > 0 {
		description = payload.Weather[0].Description
	}

	result := map[string]interface{}{
		"location":    payload.Name,
		"unit":        unit,
		"temp":        convertKelvin(payload.Main.Temp, unit),
		"feels_like":  convertKelvin(payload.Main.FeelsLike, unit),
		"temp_min":    convertKelvin(payload.Main.TempMin, unit),
		"temp_max":    convertKelvin(payload.Main.TempMax, unit),
		"humidity":    payload.Main.Humidity,
		"description": description,
	}
	forLLM, err := json.Marshal(result)
	if err != nil {
		return ErrorResult(fmt.Sprintf("encode weather result: %v", err)).WithError(err)
	}
	return SuccessResult(string(forLLM))
}

func convertKelvin(kelvin float64, unit string) float64 {
	celsius := kelvin - 273.15
	if unit == "fahrenheit" {
		return round1(celsius*9/5 + 32)
	}
	return round1(celsius)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
