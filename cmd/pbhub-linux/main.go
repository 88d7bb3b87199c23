//go:build linux

// cmd/pbhub-linux/main.go
//
// Host daemon: opens the system I2C bus through periph, starts the hub
// service plus the ambient services, and runs until interrupted. The device
// profile selects an embedded configuration (see services/config).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pbhub-go/bus"
	"pbhub-go/services/bridge"
	configsvc "pbhub-go/services/config"
	"pbhub-go/services/heartbeat"
	"pbhub-go/services/hub"
	hubcfg "pbhub-go/services/hub/config"
	"pbhub-go/transport/periphi2c"
	"pbhub-go/x/strx"
)

const defaultDevice = "pbhub-host"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device := strx.Coalesce(os.Getenv("PBHUB_DEVICE"), defaultDevice)

	if err := periphi2c.Init(); err != nil {
		println("Error: periph host init failed:", err.Error())
		os.Exit(1)
	}
	buses := periphi2c.NewRegistry()
	defer buses.Close()

	b := bus.NewBus(32)

	// Ambient services first so their config arrives retained.
	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))
	go bridge.Start(ctx, b.NewConnection("bridge"))

	cfgCtx := context.WithValue(ctx, configsvc.CtxDeviceKey, device)
	configsvc.NewConfigService().Start(cfgCtx, b.NewConnection("config"))

	// Wait for the hub section, then bring the hubs up.
	mainConn := b.NewConnection("main")
	sub := mainConn.Subscribe(bus.Topic{"config", "hub"})

	var hc hubcfg.HubConfig
	select {
	case m := <-sub.Channel():
		if err := configsvc.DecodeSection(m.Payload, &hc); err != nil {
			println("Error: bad hub config:", err.Error())
			os.Exit(1)
		}
	case <-time.After(5 * time.Second):
		println("Error: no hub config for device", device)
		os.Exit(1)
	case <-ctx.Done():
		return
	}
	mainConn.Unsubscribe(sub)

	svc := hub.New(b.NewConnection("hub_svc"), buses)
	if err := svc.Start(ctx, hc); err != nil {
		println("Error: hub service start failed:", err.Error())
		os.Exit(1)
	}
	println("Info: pbhub daemon up, device profile", device)

	<-ctx.Done()
	println("Info: shutting down")
}
