package mqtt

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const defaultClientID = "whorang-doorbell-integration"

type service struct {
	client paho_mqtt.Client
	logger *zap.Logger

	mu         sync.Mutex
	registered bool
}

func New(client paho_mqtt.Client) *service {
	return &service{
		client: client,
		logger: zap.L(),
	}
}

// NewClientOptions builds broker options from config. A bare host gets tcp:// and port 1883.
func NewClientOptions(cfg *config.MqttConfig) *paho_mqtt.ClientOptions {
	broker := cfg.Host
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	if strings.Count(broker, ":") == 1 {
		broker += ":1883"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}
	return paho_mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
}

func (s *service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(time.Second * 5)
	if res {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}
