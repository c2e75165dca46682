package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"mcsweep/internal/analysis"
	"mcsweep/internal/config"
	"mcsweep/internal/probe"
	"mcsweep/internal/status"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: mcsweep-diag <host[:port]> [connect-timeout] [status-timeout]\n")
		os.Exit(1)
	}
	host, port, err := splitTarget(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	connectTimeout := durationArg(2, config.DefaultConnectTimeout)
	statusTimeout := durationArg(3, config.DefaultStatusTimeout)
	ctx := context.Background()

	fmt.Println("=== Reachability ===")
	fmt.Printf("Target:   %s:%d\n", host, port)
	fmt.Printf("Timeout:  %v\n", connectTimeout)
	start := time.Now()
	up := probe.NewTCP(connectTimeout).Reachable(ctx, host, port)
	fmt.Printf("Reachable: %v (%v)\n", up, time.Since(start).Round(time.Millisecond))
	if !up {
		os.Exit(1)
	}

	fmt.Println("\n=== Status ===")
	start = time.Now()
	rec, err := status.NewClient(statusTimeout).Query(ctx, host, port)
	took := time.Since(start).Round(time.Millisecond)
	if err != nil {
		fmt.Printf("ERROR: %v (%v)\n", err, took)
		os.Exit(1)
	}
	rec.PlatformTag = analysis.PlatformTag(rec.Version)
	fmt.Printf("Round trip: %v\n", took)
	fmt.Printf("Version:    %s (protocol %d)\n", rec.Version, rec.Protocol)
	fmt.Printf("Platform:   %s\n", rec.PlatformTag)
	fmt.Printf("Players:    %d/%d\n", rec.OnlinePlayers, rec.MaxPlayers)
	fmt.Printf("MOTD:       %q\n", rec.MOTD)

	fmt.Println("\n=== Record ===")
	out, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(out))
}

func splitTarget(s string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port given.
		return s, config.DefaultPort, nil
	}
	p, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || p == 0 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, uint16(p), nil
}

func durationArg(i int, def time.Duration) time.Duration {
	if len(os.Args) <= i {
		return def
	}
	d, err := time.ParseDuration(os.Args[i])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring bad duration %q, using %v\n", os.Args[i], def)
		return def
	}
	return d
}
