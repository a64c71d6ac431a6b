package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jafo2128/dmrshark/pkg/comm"
	"github.com/jafo2128/dmrshark/pkg/config"
	"github.com/jafo2128/dmrshark/pkg/daemon"
	"github.com/jafo2128/dmrshark/pkg/database"
	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/dmrdata"
	"github.com/jafo2128/dmrshark/pkg/ipsc"
	"github.com/jafo2128/dmrshark/pkg/logger"
	"github.com/jafo2128/dmrshark/pkg/metrics"
	"github.com/jafo2128/dmrshark/pkg/radioid"
	"github.com/jafo2128/dmrshark/pkg/repeaters"
	"github.com/jafo2128/dmrshark/pkg/smstxbuf"
	"github.com/jafo2128/dmrshark/pkg/voicestreams"
	"github.com/jafo2128/dmrshark/pkg/web"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

// streamsAdapter converts the concrete stream lookup to the registry's
// interface, turning a nil *Stream into a nil interface.
type streamsAdapter struct {
	streams *voicestreams.Streams
}

func (a streamsAdapter) GetStreamForRepeater(ipaddr net.IP, ts dmr.Timeslot) repeaters.VoiceStream {
	s := a.streams.GetStreamForRepeater(ipaddr, ts)
	if s == nil {
		return nil
	}
	return s
}

// countingSender counts transmissions on top of the raw sender.
type countingSender struct {
	inner   repeaters.Sender
	metrics *metrics.Collector
}

func (s countingSender) SendIPSCPacket(dst net.IP, packet []byte) error {
	if s.inner == nil {
		return nil
	}
	if err := s.inner.SendIPSCPacket(dst, packet); err != nil {
		s.metrics.SendFailure()
		return err
	}
	s.metrics.DatagramSent()
	return nil
}

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dmrshark %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		os.Exit(0)
	}

	// Initialize logger (basic console logger for startup messages)
	log := logger.New(logger.Config{Level: "info"})

	log.Info("Starting dmrshark",
		logger.String("version", version),
		logger.String("commit", gitCommit))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	// Reinitialize logger with config from file
	log = logger.New(logger.Config{
		Level: cfg.Logging.Level,
		Flags: logger.Flags{
			DMR:       cfg.Logging.DMR,
			Repeaters: cfg.Logging.Repeaters,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Shutting down", logger.String("signal", sig.String()))
		cancel()
	}()

	// SIGUSR1 dumps the diagnostic listings from the tick loop.
	listChan := make(chan os.Signal, 1)
	signal.Notify(listChan, syscall.SIGUSR1)

	coll := metrics.NewCollector()
	resolver := comm.Resolver{}
	localAddrs := comm.NewLocalAddrs()
	poll := daemon.NewPoll()

	// Call/SMS log database is optional.
	var callRepo *database.CallLogRepository
	var smsRepo *database.SMSLogRepository
	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{
			Path:          cfg.Database.Path,
			RetentionDays: cfg.Database.RetentionDays,
		}, log.WithComponent("database"))
		if err != nil {
			log.Error("Failed to initialize database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		callRepo = database.NewCallLogRepository(db.GetDB())
		smsRepo = database.NewSMSLogRepository(db.GetDB())
	}

	var dir *radioid.Directory
	if cfg.RadioID.Enabled {
		dir = radioid.NewDirectory(log.WithComponent("radioid"))
		if err := dir.LoadFile(cfg.RadioID.Path); err != nil {
			log.Warn("Can't load dmr id directory", logger.Error(err))
			dir = nil
		}
	}

	// Voice stream sinks.
	var streamConfigs []voicestreams.StreamConfig
	for name, sc := range cfg.VoiceStreams {
		if !sc.Enabled {
			continue
		}
		streamConfigs = append(streamConfigs, voicestreams.StreamConfig{
			Name:         name,
			RepeaterHost: sc.RepeaterHost,
			Timeslot:     dmr.Timeslot(sc.Timeslot - 1),
			SaveDir:      sc.SaveDir,
		})
	}
	streams := voicestreams.New(streamConfigs, resolver, log.WithComponent("voicestreams"))

	// Raw sender needs CAP_NET_RAW; without it we run receive-only.
	var sender repeaters.Sender
	if rawSender, err := comm.NewRawSender(); err != nil {
		log.Warn("Raw socket unavailable, running receive-only", logger.Error(err))
	} else {
		defer rawSender.Close()
		sender = rawSender
	}

	// Status surface.
	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg.Web, coll, log.WithComponent("web"))
		go func() {
			if err := webServer.Start(ctx); err != nil {
				log.Error("Web server failed", logger.Error(err))
			}
		}()
	}

	handlers := newEventHandlers(log.WithComponent("dmr"), coll)
	handlers.calls = callRepo
	handlers.dir = dir
	if webServer != nil {
		handlers.hub = webServer.Hub()
	}

	registry := repeaters.New(repeaters.Config{
		InactiveTimeout:      time.Duration(cfg.Repeaters.InactiveTimeoutSec) * time.Second,
		InfoUpdateInterval:   time.Duration(cfg.Repeaters.InfoUpdateIntervalSec) * time.Second,
		CallTimeout:          time.Duration(cfg.Repeaters.CallTimeoutSec) * time.Second,
		DataTimeout:          time.Duration(cfg.Repeaters.DataTimeoutSec) * time.Second,
		RSSIUpdateDuringCall: time.Duration(cfg.Repeaters.RSSIUpdateDuringCallMS) * time.Millisecond,
		IgnoredSNMPHosts:     cfg.Repeaters.IgnoredSNMPHosts,
		EchoID:               dmr.ID(cfg.IPSC.EchoID),
		DefaultDMRID:         dmr.ID(cfg.IPSC.DefaultDMRID),
	}, repeaters.Deps{
		Resolver:  resolver,
		SNMP:      snmpStub{log: log.WithComponent("snmp")},
		Handlers:  handlers,
		Sender:    countingSender{inner: sender, metrics: coll},
		Scheduler: poll,
		Streams:   streamsAdapter{streams: streams},
	}, log.WithComponent("repeaters"))
	handlers.reg = registry

	tracker := &smsTracker{
		log:     log.WithComponent("smstxbuf"),
		metrics: coll,
		sms:     smsRepo,
	}
	if webServer != nil {
		tracker.hub = webServer.Hub()
	}

	smsBuffer := smstxbuf.New(smstxbuf.Config{
		RetryInterval: time.Duration(cfg.SMS.SendRetryIntervalSec) * time.Second,
		MaxRetryCount: cfg.SMS.SendMaxRetryCount,
	}, smstxbuf.Deps{
		Sender:    dmrdata.New(registry, log.WithComponent("dmrdata")),
		Tracker:   tracker,
		Scheduler: poll,
	}, log.WithComponent("smstxbuf"))
	tracker.buf = smsBuffer
	handlers.sms = smsBuffer

	// Config-driven pre-registration.
	now := time.Now()
	for _, host := range strings.Split(cfg.Repeaters.PreloadHosts, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if ipaddr, ok := resolver.HostnameToIP(host); ok {
			registry.Add(ipaddr, now)
		} else {
			log.Warn("Can't resolve preload host", logger.String("host", host))
		}
	}

	listener, err := comm.NewListener(cfg.IPSC.ListenHost, cfg.IPSC.ListenPort, log.WithComponent("comm"))
	if err != nil {
		log.Error("Failed to bind listener", logger.Error(err))
		os.Exit(1)
	}
	go listener.Run(ctx)

	log.Info("dmrshark ready",
		logger.Int("port", cfg.IPSC.ListenPort),
		logger.Bool("tx_enabled", sender != nil))

	runTickLoop(ctx, tickDeps{
		log:       log,
		poll:      poll,
		registry:  registry,
		smsBuffer: smsBuffer,
		listener:  listener,
		local:     localAddrs,
		metrics:   coll,
		web:       webServer,
		list:      listChan,
	})

	registry.Deinit()
	smsBuffer.Deinit()
	log.Info("dmrshark stopped")
}

// snmpStub logs poll triggers. The SNMP reads themselves are not
// implemented; this keeps the registry's poll scheduling observable.
type snmpStub struct {
	log *logger.Logger
}

func (s snmpStub) StartReadRepeaterInfo(ip string) {
	s.log.Debug("repeater info read requested", logger.String("ip", ip))
}

func (s snmpStub) StartReadRepeaterStatus(ip string) {
	s.log.Debug("repeater status read requested", logger.String("ip", ip))
}

type tickDeps struct {
	log       *logger.Logger
	poll      *daemon.Poll
	registry  *repeaters.Registry
	smsBuffer *smstxbuf.Buffer
	listener  *comm.Listener
	local     *comm.LocalAddrs
	metrics   *metrics.Collector
	web       *web.Server
	list      chan os.Signal
}

// runTickLoop is the single cooperative loop driving the core: inbound
// packets and ticks both run here, so the registry and the SMS buffer
// never see concurrent access.
func runTickLoop(ctx context.Context, d tickDeps) {
	var lastSnapshot time.Time

	for {
		timeout := d.poll.ConsumeTimeout()

		select {
		case <-ctx.Done():
			return

		case pkt, ok := <-d.listener.Packets():
			if !ok {
				return
			}
			handleInbound(d, pkt)

		case <-d.list:
			d.registry.List(os.Stdout, time.Now())
			d.smsBuffer.Print(os.Stdout)

		case <-time.After(timeout):
		}

		now := time.Now()
		d.registry.Process(now)
		d.smsBuffer.Process(now)

		if d.web != nil {
			drainSMSRequests(d, now)
			if now.Sub(lastSnapshot) >= time.Second {
				pushSnapshots(d)
				lastSnapshot = now
			}
		}
	}
}

func handleInbound(d tickDeps, pkt comm.InboundPacket) {
	now := time.Now()

	if ipsc.IsHeartbeat(pkt.SrcPort, pkt.DstPort, len(pkt.Data)) {
		d.metrics.HeartbeatSeen()
		if !d.local.IsOurIPAddr(pkt.SrcAddr) {
			d.registry.Add(pkt.SrcAddr, now)
		}
		return
	}

	fromUs := d.local.IsOurIPAddr(pkt.SrcAddr)
	decoded, err := ipsc.ParsePacket(pkt.Data, fromUs)
	if err != nil {
		// Arbitrary processes talk on this port; drop silently.
		d.metrics.PacketRejected()
		d.log.Debug("dropping non-ipsc datagram", logger.Error(err))
		return
	}
	d.metrics.PacketDecoded(decoded.SlotType.String())

	rep := d.registry.FindByIP(pkt.SrcAddr)
	if rep == nil {
		if fromUs {
			return
		}
		rep = d.registry.Add(pkt.SrcAddr, now)
		if rep == nil {
			return
		}
	}

	d.registry.ProcessReceivedPacket(rep, decoded, now)
}

func drainSMSRequests(d tickDeps, now time.Time) {
	for {
		select {
		case req := <-d.web.SMSRequests():
			callType := dmr.CallTypePrivate
			if req.CallType == "group" {
				callType = dmr.CallTypeGroup
			}
			smsType := dmr.SMSTypeNormal
			if req.SMSType == "motorola-tms" {
				smsType = dmr.SMSTypeMotorolaTMS
			}
			d.smsBuffer.Add(nil, dmr.Timeslot(req.Timeslot-1), callType,
				dmr.ID(req.DstID), dmr.ID(req.SrcID), smsType, req.Msg, now)
			d.metrics.SMSQueued()
		default:
			return
		}
	}
}

func pushSnapshots(d tickDeps) {
	d.web.SetRepeaters(d.registry.Snapshots())

	queue := make([]web.SMSQueueEntry, 0, d.smsBuffer.Len())
	for _, entry := range d.smsBuffer.All() {
		queue = append(queue, web.SMSQueueEntry{
			DstID:     uint32(entry.DstID),
			SrcID:     uint32(entry.SrcID),
			CallType:  entry.CallType.String(),
			SMSType:   entry.SMSType.String(),
			Msg:       entry.Msg,
			SendTries: entry.SendTries,
			AddedAt:   entry.AddedAt,
		})
	}
	d.web.SetSMSQueue(queue)
}
