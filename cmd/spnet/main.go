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

// Command spnet is a one-socket demo binary: pick a pattern, bind or
// connect, then either send stdin lines or print received messages.
// Flags fill the config first; a "-c" JSON file overrides them.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/xtaci/spnet/config"
	"github.com/xtaci/spnet/session"
	"github.com/xtaci/spnet/std"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "spnet"
	app.Usage = "scalability-protocols message bus demo"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "type", Value: "pair", Usage: "pair, req, rep, pub, sub, surveyor, respondent, push, pull, bus"},
		cli.StringFlag{Name: "bind", Usage: `listen url, e.g. "tcp://0.0.0.0:5454" or "ipc:///tmp/spnet.sock"`},
		cli.StringFlag{Name: "connect", Usage: `dial url, e.g. "tcp://127.0.0.1:5454"`},
		cli.IntFlag{Name: "sendtimeout", Usage: "send deadline in milliseconds, 0 disables"},
		cli.IntFlag{Name: "recvtimeout", Usage: "recv deadline in milliseconds, 0 disables"},
		cli.StringSliceFlag{Name: "subscribe", Usage: "subscription prefix (sub only, repeatable)"},
		cli.IntFlag{Name: "surveydeadline", Usage: "survey cancel deadline in milliseconds (surveyor only)"},
		cli.IntFlag{Name: "resend", Usage: "request resend interval in milliseconds (req only)"},
		cli.StringFlag{Name: "send", Usage: "send this string once, then exit"},
		cli.BoolFlag{Name: "recvloop", Usage: "print every received message until interrupted"},
		cli.StringFlag{Name: "snmplog", Usage: "collect reactor stats to file, aware of Go time format"},
		cli.IntFlag{Name: "snmpperiod", Value: 60, Usage: "stats collection period, in seconds"},
		cli.BoolFlag{Name: "quiet", Usage: "suppress the socket-open banner"},
		cli.StringFlag{Name: "log", Usage: "specify a log file to output, default goes to stderr"},
		cli.StringFlag{Name: "c", Usage: "config from json file, which will override the command from shell"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := config.Config{
		Type:             c.String("type"),
		Listen:           c.String("bind"),
		Connect:          c.String("connect"),
		SendTimeoutMS:    c.Int("sendtimeout"),
		RecvTimeoutMS:    c.Int("recvtimeout"),
		Subscribe:        c.StringSlice("subscribe"),
		SurveyDeadlineMS: c.Int("surveydeadline"),
		ResendMS:         c.Int("resend"),
		SnmpLog:          c.String("snmplog"),
		SnmpPeriod:       c.Int("snmpperiod"),
		Quiet:            c.Bool("quiet"),
		Log:              c.String("log"),
	}

	if path := c.String("c"); path != "" {
		if err := config.ParseJSON(&cfg, path); err != nil {
			return err
		}
	}

	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)
	}

	socketType, ok := cfg.SocketType()
	if !ok {
		return fmt.Errorf("unknown socket type: %q", cfg.Type)
	}

	sess := session.New()
	defer sess.Close()

	sock, err := sess.CreateSocket(socketType)
	if err != nil {
		return err
	}
	if err := cfg.Apply(sock); err != nil {
		return err
	}

	if cfg.Listen != "" {
		if err := sock.Bind(cfg.Listen); err != nil {
			return err
		}
		if !cfg.Quiet {
			color.Green("bound %s on %s", cfg.Type, cfg.Listen)
		}
	}
	if cfg.Connect != "" {
		if err := sock.Connect(cfg.Connect); err != nil {
			return err
		}
		if !cfg.Quiet {
			color.Green("connecting %s to %s", cfg.Type, cfg.Connect)
		}
	}

	go std.SnmpLogger(sess, cfg.SnmpLog, cfg.SnmpPeriod)

	if send := c.String("send"); send != "" {
		return sock.Send([]byte(send))
	}

	if c.Bool("recvloop") {
		for {
			msg, err := sock.Recv()
			if err != nil {
				return err
			}
			fmt.Println(string(msg))
		}
	}

	// Default interactive mode: echo stdin lines out, print whatever
	// arrives on a second goroutine.
	go func() {
		for {
			msg, err := sock.Recv()
			if err != nil {
				return
			}
			fmt.Println(string(msg))
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := sock.Send(scanner.Bytes()); err != nil {
			return err
		}
	}
	return scanner.Err()
}
