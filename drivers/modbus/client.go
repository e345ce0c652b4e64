package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

const defaultTimeout = 5 * time.Second

// Client is the subset of Modbus operations the transport issues. Test
// doubles implement it without a network.
type Client interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
	Close() error
}

// ClientFactory connects to the endpoint described by settings.
type ClientFactory func(settings Settings) (Client, error)

// tcpClient pairs the goburrow protocol client with the handler owning the socket.
type tcpClient struct {
	modbus.Client
	conn *modbus.TCPClientHandler
}

func (c tcpClient) Close() error { return c.conn.Close() }

// dialTCP is the default ClientFactory.
func dialTCP(settings Settings) (Client, error) {
	if settings.Address == "" {
		return nil, errors.New("modbus address is required")
	}
	conn := modbus.NewTCPClientHandler(settings.Address)
	conn.SlaveId = settings.UnitID
	conn.Timeout = defaultTimeout
	if settings.Timeout.Duration > 0 {
		conn.Timeout = settings.Timeout.Duration
	}
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus %s: %w", settings.Address, err)
	}
	return tcpClient{Client: modbus.NewClient(conn), conn: conn}, nil
}
