package jaeger

import (
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/jaeger"
)

// Settings selects where spans go. A non-empty AgentHost sends them to the
// UDP agent instead of the HTTP collector.
type Settings struct {
	CollectorEndpoint string
	Username          string
	Password          string
	AgentHost         string
	AgentPort         string
}

func settingsFromConfig() Settings {
	return Settings{
		CollectorEndpoint: viper.GetString("otel.jaeger_endpoint"),
		Username:          viper.GetString("otel.jaeger_username"),
		Password:          viper.GetString("otel.jaeger_password"),
		AgentHost:         viper.GetString("otel.jaeger_agent_host"),
		AgentPort:         viper.GetString("otel.jaeger_agent_port"),
	}
}

func MustNewJaeger() *jaeger.Exporter {
	exp, err := NewJaeger(settingsFromConfig())
	if err != nil {
		panic(err)
	}

	return exp
}

func NewJaeger(s Settings) (*jaeger.Exporter, error) {
	return jaeger.New(endpoint(s))
}

func endpoint(s Settings) jaeger.EndpointOption {
	if s.AgentHost != "" {
		opts := []jaeger.AgentEndpointOption{jaeger.WithAgentHost(s.AgentHost)}
		if s.AgentPort != "" {
			opts = append(opts, jaeger.WithAgentPort(s.AgentPort))
		}
		return jaeger.WithAgentEndpoint(opts...)
	}

	var opts []jaeger.CollectorEndpointOption
	if s.CollectorEndpoint != "" {
		opts = append(opts, jaeger.WithEndpoint(s.CollectorEndpoint))
	}
	if s.Username != "" {
		opts = append(opts, jaeger.WithUsername(s.Username), jaeger.WithPassword(s.Password))
	}

	return jaeger.WithCollectorEndpoint(opts...)
}
