// Command tnconsole is a tiny interactive client driving tinode.Session
// over a real websocket connection, analogous to the reference server's
// own command-line tool (tinode-db/main.go) but exercising the client side
// of the protocol instead of seeding the server's database.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/tinode/jsonco"

	"github.com/tinode/tncore/tinode"
	"github.com/tinode/tncore/tnstore/memstore"
	"github.com/tinode/tncore/transport/ws"
)

// fileConfig is the on-disk shape of tinode.conf, loaded through
// tinode/jsonco the same way the reference server loads its own config
// blobs (server/auth_token.go Init), stripping // and /* */ comments
// before handing the bytes to encoding/json.
type fileConfig struct {
	Host     string `json:"host"`
	APIKey   string `json:"api_key"`
	TLS      bool   `json:"tls"`
	AppName  string `json:"app_name"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := json.NewDecoder(jsonco.New(f))
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

type consoleListener struct {
	tinode.NoopListener
}

func (consoleListener) OnConnect(code int, reason string, params map[string]interface{}) {
	log.Printf("connected: %d %s %v", code, reason, params)
}

func (consoleListener) OnDisconnect(byServer bool, code int, reason string) {
	log.Printf("disconnected (byServer=%v): %d %s", byServer, code, reason)
}

func (consoleListener) OnLogin(code int, text string) {
	log.Printf("login: %d %s", code, text)
}

func main() {
	confPath := flag.String("config", "tinode.conf", "path to JSONC config file")
	flag.Parse()

	cfg, err := loadConfig(*confPath)
	if err != nil {
		log.Fatal(err)
	}

	endpoint := tinode.Endpoint(cfg.Host, cfg.TLS, true)
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("X-Tinode-APIKey", cfg.APIKey)
	}
	transport := ws.New(endpoint, header)

	store := memstore.New()

	sess := tinode.NewSession(tinode.Config{
		AppName:      cfg.AppName,
		APIKey:       cfg.APIKey,
		Host:         cfg.Host,
		TLS:          cfg.TLS,
		UseWebsocket: true,
		OSVersion:    "linux",
		Locale:       "en",
	}, transport, store, topicFactory)
	defer sess.Close()

	sess.AddListener(consoleListener{})

	if err := sess.Connect(); err != nil {
		log.Fatal(err)
	}

	repl(sess)
}

// repl is a minimal line-oriented command loop: "login user pass",
// "sub topic", "pub topic text", "leave topic", "quit".
func repl(sess *tinode.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "login":
			if len(fields) != 3 {
				fmt.Println("usage: login <user> <pass>")
				continue
			}
			if _, err := sess.LoginBasic(fields[1], fields[2]); err != nil {
				fmt.Println("error:", err)
			}
		case "sub":
			if len(fields) != 2 {
				fmt.Println("usage: sub <topic>")
				continue
			}
			if _, err := sess.Sub(fields[1], nil, nil); err != nil {
				fmt.Println("error:", err)
			}
		case "pub":
			if len(fields) < 3 {
				fmt.Println("usage: pub <topic> <text...>")
				continue
			}
			text := strings.Join(fields[2:], " ")
			if _, err := sess.Pub(fields[1], nil, text); err != nil {
				fmt.Println("error:", err)
			}
		case "leave":
			if len(fields) != 2 {
				fmt.Println("usage: leave <topic>")
				continue
			}
			if _, err := sess.Leave(fields[1], false); err != nil {
				fmt.Println("error:", err)
			}
		case "quit", "exit":
			sess.Logout()
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}
