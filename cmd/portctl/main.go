// portctl is a thin HTTP client for portkerd's syscall boundary, adapted
// from cmd/bulk-delete's flag-parse-then-act shape but using pflag (this
// repo's CLI library, per SPEC_FULL.md) and talking over HTTP rather than
// straight to a shared store — portkerd's port table lives in that
// process's memory, so there is nothing for a CLI to reach directly.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	addr := pflag.String("addr", "http://127.0.0.1:8088", "portkerd base URL")
	owner := pflag.Int64("owner", 0, "owner task id, for the reap command")
	idOrName := pflag.String("id", "", "port id or name, for the dump command")
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		fmt.Println("Usage: portctl [--addr=<url>] <reap|dump> [flags]")
		os.Exit(1)
	}

	log := buildLogger().Named("portctl")
	client := &http.Client{Timeout: 10 * time.Second}

	switch args[0] {
	case "reap":
		if *owner == 0 {
			fmt.Println("Usage: portctl reap --owner=<id>")
			os.Exit(1)
		}
		reap(client, log, *addr, *owner)
	case "dump":
		dump(client, log, *addr, *idOrName)
	default:
		fmt.Printf("unknown command %q\n", args[0])
		os.Exit(1)
	}
}

func reap(client *http.Client, log *zap.Logger, addr string, owner int64) {
	start := time.Now()
	url := fmt.Sprintf("%s/owners/%d/reap", addr, owner)

	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		log.Fatal("reap request failed", zap.Error(err))
	}
	defer resp.Body.Close()

	var body struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Fatal("reap response decode failed", zap.Error(err))
	}

	log.Info("owned ports reaped",
		zap.Int64("owner", owner),
		zap.Int("deleted", body.Deleted),
		zap.Duration("took", time.Since(start)),
	)
}

func dump(client *http.Client, log *zap.Logger, addr, idOrName string) {
	url := addr + "/debug/ports"
	if idOrName != "" {
		url = fmt.Sprintf("%s/debug/ports/%s", addr, idOrName)
	}

	resp, err := client.Get(url)
	if err != nil {
		log.Fatal("dump request failed", zap.Error(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatal("dump request returned non-200", zap.Int("status", resp.StatusCode))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal("dump response read failed", zap.Error(err))
	}
	fmt.Println(string(out))
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}
