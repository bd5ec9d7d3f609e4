// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config holds the CLI-flag-plus-JSON-override configuration
// cmd/spnet builds a Session and Socket from: flags fill a Config first,
// then a "-c" JSON file overrides whatever fields it sets.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/xtaci/spnet/reactor"
	"github.com/xtaci/spnet/session"
	"github.com/xtaci/spnet/socket"
)

// Config is the full set of socket knobs the facade exposes, plus the
// ambient logging/snmp options (Log, SnmpLog, SnmpPeriod, Quiet).
type Config struct {
	Type    string `json:"type"`    // pair, req, rep, pub, sub, surveyor, respondent, push, pull, bus
	Listen  string `json:"listen"`  // e.g. "tcp://0.0.0.0:5454", empty to skip
	Connect string `json:"connect"` // e.g. "tcp://127.0.0.1:5454", empty to skip

	SendTimeoutMS int `json:"sendtimeout"`
	RecvTimeoutMS int `json:"recvtimeout"`

	SendPriority int `json:"sendpriority"`
	RecvPriority int `json:"recvpriority"`

	ReconnectMS    int `json:"reconnect"`
	ReconnectMaxMS int `json:"reconnectmax"`

	Subscribe []string `json:"subscribe"` // Sub only

	SurveyDeadlineMS int `json:"surveydeadline"` // Surveyor only
	ResendMS         int `json:"resend"`         // Req only

	Log        string `json:"log"`
	SnmpLog    string `json:"snmplog"`
	SnmpPeriod int    `json:"snmpperiod"`
	Quiet      bool   `json:"quiet"`
}

// ParseJSON overlays a JSON file's fields onto cfg: flags fill in
// defaults first, then the JSON file's values win wherever it sets a
// field.
func ParseJSON(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(cfg)
}

// SocketType resolves the Type string to a session.SocketType.
func (c Config) SocketType() (session.SocketType, bool) {
	switch c.Type {
	case "pair":
		return session.Pair, true
	case "req":
		return session.Req, true
	case "rep":
		return session.Rep, true
	case "pub":
		return session.Pub, true
	case "sub":
		return session.Sub, true
	case "surveyor":
		return session.Surveyor, true
	case "respondent":
		return session.Respondent, true
	case "push":
		return session.Push, true
	case "pull":
		return session.Pull, true
	case "bus":
		return session.Bus, true
	default:
		return 0, false
	}
}

// Apply sets every socket option Config names.
func (c Config) Apply(sock *socket.Socket) error {
	if c.SendTimeoutMS > 0 {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptSendTimeout, Duration: time.Duration(c.SendTimeoutMS) * time.Millisecond}); err != nil {
			return err
		}
	}
	if c.RecvTimeoutMS > 0 {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptRecvTimeout, Duration: time.Duration(c.RecvTimeoutMS) * time.Millisecond}); err != nil {
			return err
		}
	}
	if c.SendPriority > 0 {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptSendPriority, Priority: uint8(c.SendPriority)}); err != nil {
			return err
		}
	}
	if c.RecvPriority > 0 {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptRecvPriority, Priority: uint8(c.RecvPriority)}); err != nil {
			return err
		}
	}
	if c.ReconnectMS > 0 {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptReconnectInterval, Duration: time.Duration(c.ReconnectMS) * time.Millisecond}); err != nil {
			return err
		}
	}
	if c.ReconnectMaxMS > 0 {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptReconnectIntervalMax, Duration: time.Duration(c.ReconnectMaxMS) * time.Millisecond}); err != nil {
			return err
		}
	}
	for _, prefix := range c.Subscribe {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptSubscribe, Bytes: []byte(prefix)}); err != nil {
			return err
		}
	}
	if c.SurveyDeadlineMS > 0 {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptSurveyDeadline, Duration: time.Duration(c.SurveyDeadlineMS) * time.Millisecond}); err != nil {
			return err
		}
	}
	if c.ResendMS > 0 {
		if err := sock.SetOption(reactor.Option{Kind: reactor.OptResendInterval, Duration: time.Duration(c.ResendMS) * time.Millisecond}); err != nil {
			return err
		}
	}
	return nil
}
