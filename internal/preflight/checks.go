package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sys/unix"

	"revtrack/internal/config"
)

const checkTimeout = 5 * time.Second

// CheckKafka verifies that at least one broker accepts connections.
func CheckKafka(ctx context.Context, brokers []string) Result {
	const name = "Kafka"

	if len(brokers) == 0 {
		return Result{Name: name, Detail: "no brokers configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var failures []string
	for _, broker := range brokers {
		conn, err := kafka.DialContext(checkCtx, "tcp", broker)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", broker, summarizeError(err)))
			continue
		}
		_ = conn.Close()
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", broker)}
	}
	return Result{Name: name, Detail: strings.Join(failures, "; ")}
}

// CheckRedis sends PING to the configured server.
func CheckRedis(ctx context.Context, cfg config.Redis) Result {
	const name = "Redis"

	if strings.TrimSpace(cfg.Addr) == "" {
		return Result{Name: name, Detail: "missing addr"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: checkTimeout,
		MaxRetries:  -1,
	})
	defer client.Close()

	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (ping failed: %s)", cfg.Addr, summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (PONG)", cfg.Addr)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
