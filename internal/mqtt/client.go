package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"mythtv_control/internal/backend"
	"mythtv_control/internal/frontend"
)

const (
	discoveryPrefix = "homeassistant"
	publishTimeout  = 5 * time.Second
)

// CommandHandler is called for every command received for a frontend slug
type CommandHandler func(slug, command string, value float64)

// Client bridges frontend state and tuner sensors to an MQTT broker
type Client struct {
	client    paho.Client
	baseTopic string

	mu             sync.RWMutex
	connected      bool
	commandHandler CommandHandler
	announced      map[string]bool
	tuners         []backend.Tuner
}

// Config holds MQTT connection settings
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	ClientID  string
	BaseTopic string
}

// NewClient creates a client. Connect starts the session.
func NewClient(cfg Config) *Client {
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "mythtv"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "mythtv_control"
	}
	c := &Client{
		baseTopic: cfg.BaseTopic,
		announced: make(map[string]bool),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetWill(c.availabilityTopic(), "offline", 1, true)

	opts.SetOnConnectHandler(func(client paho.Client) {
		log.Println("MQTT connected")
		c.mu.Lock()
		c.connected = true
		// a new session may have lost retained discovery configs
		c.announced = make(map[string]bool)
		tuners := c.tuners
		c.mu.Unlock()
		client.Publish(c.availabilityTopic(), 1, true, "online")
		c.subscribeToCommands(client)
		if len(tuners) > 0 {
			go c.PublishTuners(tuners)
		}
	})

	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	})

	c.client = paho.NewClient(opts)
	return c
}

// Connect starts the MQTT connection
func (c *Client) Connect() error {
	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect failed: %w", err)
	}
	return nil
}

// SetCommandHandler sets the callback for incoming frontend commands
func (c *Client) SetCommandHandler(handler CommandHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commandHandler = handler
}

func (c *Client) availabilityTopic() string {
	return c.baseTopic + "/status"
}

// StateTopic is where a frontend's retained state is published
func (c *Client) StateTopic(name string) string {
	return fmt.Sprintf("%s/frontend/%s/state", c.baseTopic, frontend.Slug(name))
}

// CommandTopic is where commands for a frontend are accepted
func (c *Client) CommandTopic(name string) string {
	return fmt.Sprintf("%s/frontend/%s/command", c.baseTopic, frontend.Slug(name))
}

func (c *Client) tunerStateTopic(name string) string {
	return fmt.Sprintf("%s/tuner/%s/state", c.baseTopic, frontend.Slug(name))
}

func (c *Client) subscribeToCommands(client paho.Client) {
	topic := c.baseTopic + "/frontend/+/command"
	token := client.Subscribe(topic, 1, c.handleCommandMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("MQTT: Failed to subscribe to %s: %v", topic, err)
		return
	}
	log.Printf("MQTT: Subscribed to %s", topic)
}

type commandMessage struct {
	Command string  `json:"command"`
	Value   float64 `json:"value"`
}

// parseCommand accepts either {"command":"..","value":n} or a bare command
// name as payload
func (c *Client) parseCommand(topic string, payload []byte) (slug string, cmd commandMessage, ok bool) {
	prefix := c.baseTopic + "/frontend/"
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, "/command") {
		return "", cmd, false
	}
	slug = strings.TrimSuffix(strings.TrimPrefix(topic, prefix), "/command")
	if slug == "" || strings.Contains(slug, "/") {
		return "", cmd, false
	}

	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &cmd); err != nil {
			return "", cmd, false
		}
	} else {
		cmd.Command = trimmed
	}
	cmd.Command = strings.ToLower(strings.TrimSpace(cmd.Command))
	return slug, cmd, cmd.Command != ""
}

func (c *Client) handleCommandMessage(client paho.Client, msg paho.Message) {
	slug, cmd, ok := c.parseCommand(msg.Topic(), msg.Payload())
	if !ok {
		log.Printf("MQTT: Ignoring malformed command on %s: %s", msg.Topic(), string(msg.Payload()))
		return
	}

	c.mu.RLock()
	handler := c.commandHandler
	c.mu.RUnlock()
	if handler != nil {
		handler(slug, cmd.Command, cmd.Value)
	}
}

// PublishFrontend publishes a retained frontend snapshot
func (c *Client) PublishFrontend(state frontend.State) {
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("MQTT: Failed to marshal state for %s: %v", state.Name, err)
		return
	}
	c.publish(c.StateTopic(state.Name), true, data)
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type binarySensorConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	DeviceClass       string          `json:"device_class"`
	PayloadOn         string          `json:"payload_on"`
	PayloadOff        string          `json:"payload_off"`
	Device            discoveryDevice `json:"device"`
}

func (c *Client) tunerDiscovery(t backend.Tuner) (string, []byte, error) {
	slug := frontend.Slug(t.Name)
	topic := fmt.Sprintf("%s/binary_sensor/mythtv_%s/config", discoveryPrefix, slug)
	cfg := binarySensorConfig{
		Name:              t.Name,
		UniqueID:          "mythtv_tuner_" + slug,
		StateTopic:        c.tunerStateTopic(t.Name),
		AvailabilityTopic: c.availabilityTopic(),
		DeviceClass:       "connectivity",
		PayloadOn:         "ON",
		PayloadOff:        "OFF",
		Device: discoveryDevice{
			Identifiers:  []string{"mythtv_backend"},
			Name:         "MythTV Backend",
			Manufacturer: "MythTV",
			Model:        "Backend",
		},
	}
	data, err := json.Marshal(cfg)
	return topic, data, err
}

// PublishTuners announces each tuner once per session and publishes its
// connectivity
func (c *Client) PublishTuners(tuners []backend.Tuner) {
	c.mu.Lock()
	c.tuners = tuners
	c.mu.Unlock()

	for _, t := range tuners {
		c.mu.Lock()
		fresh := !c.announced[t.Name]
		c.announced[t.Name] = true
		c.mu.Unlock()

		if fresh {
			topic, data, err := c.tunerDiscovery(t)
			if err != nil {
				log.Printf("MQTT: Failed to build discovery for %s: %v", t.Name, err)
				continue
			}
			c.publish(topic, true, data)
		}

		state := "OFF"
		if t.Connected {
			state = "ON"
		}
		c.publish(c.tunerStateTopic(t.Name), true, []byte(state))
	}
}

func (c *Client) publish(topic string, retained bool, payload []byte) {
	if !c.IsConnected() {
		return
	}
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("MQTT: Publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("MQTT: Publish to %s failed: %v", topic, err)
	}
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Disconnect marks the bridge offline and closes the connection
func (c *Client) Disconnect() {
	if c.IsConnected() {
		token := c.client.Publish(c.availabilityTopic(), 1, true, "offline")
		token.WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
}
