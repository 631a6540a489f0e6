// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	_ "github.com/cubefs/cubefs/blobstore/util/version"
	"google.golang.org/grpc"

	"github.com/cubefs/mds/dataplane"
	"github.com/cubefs/mds/mds"
	"github.com/cubefs/mds/metrics"
	"github.com/cubefs/mds/proto"
	"github.com/cubefs/mds/transport"
	"github.com/cubefs/mds/util"
)

// Config is the on-disk configuration loaded by config.Load, mirroring
// the teacher's flat cmd.Config embedding server.Config.
type Config struct {
	mds.Config

	HTTPBindPort  uint32 `json:"http_bind_port"`
	GRPCBindPort  uint32 `json:"grpc_bind_port"`
	MaxProcessors int    `json:"max_processors"`
}

func main() {
	config.Init("f", "", "mds.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatal(errors.Detail(err))
	}

	initConfig(cfg)
	modifyOpenFiles()
	log.SetOutputLevel(cfg.LogLevel)

	// The wire messenger, monitor client, object store client, and every
	// data-plane collaborator are out of scope for this controller
	// (spec.md §6): a real deployment links this package into a binary
	// that supplies its own. Standalone, cmd/mds runs the controller
	// against the in-memory fakes so the lifecycle, membership, admin, and
	// tick logic all run against a live process.
	tr := mds.Transport{
		Messenger:   transport.NewGRPCMessenger(),
		Monitor:     transport.NewFakeMonitorClient(),
		ObjectStore: transport.NewFakeObjectStoreClient(),
		Auth:        newAuthRegistry(),
	}
	peers := mds.Peers{
		Cache:      &dataplane.FakeCache{},
		Journal:    &dataplane.FakeJournal{},
		Balancer:   &dataplane.FakeBalancer{},
		Migrator:   &dataplane.FakeMigrator{},
		Locker:     &dataplane.FakeLocker{},
		Sessions:   dataplane.NewFakeSessionTable(),
		SnapServer: &dataplane.FakeSnapServer{},
		SnapClient: &dataplane.FakeSnapClient{},
		Allocator:  &dataplane.FakeAllocator{},
		MemMonitor: &dataplane.FakeMemoryMonitor{},
		OpTracker:  &dataplane.FakeOpTracker{},
	}

	globalID := proto.GlobalID(1)
	d := mds.NewDaemon(&cfg.Config, globalID, peers, tr)

	ctx := context.Background()
	if err := d.Init(ctx, mds.ParseWantedState(cfg.WantedState)); err != nil {
		log.Fatalf("mds init failed: %s", errors.Detail(err))
	}

	httpServer := mds.NewHTTPServer(d)
	httpServer.Serve(":" + strconv.Itoa(int(cfg.HTTPBindPort)))

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(metrics.GRPCMetrics.UnaryServerInterceptor()))
	transport.RegisterAdminServer(grpcServer, transport.AdminHandler(d.HandleCommand))
	metrics.GRPCMetrics.InitializeMetrics(grpcServer)
	go serveGRPC(grpcServer, ":"+strconv.Itoa(int(cfg.GRPCBindPort)))

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	sig := <-ch

	d.HandleSignal(ctx, sig)
	grpcServer.GracefulStop()
	httpServer.Stop()
}

func serveGRPC(s *grpc.Server, addr string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("grpc listen %s: %s", addr, err)
	}
	log.Info("mds admin grpc server is running at:", addr)
	if err := s.Serve(lis); err != nil {
		log.Errorf("grpc server exited: %s", err)
	}
}

func initConfig(cfg *Config) {
	if cfg.MaxProcessors > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcessors)
	}
	if cfg.Addr == "" {
		addr, err := util.GetLocalIp()
		if err != nil {
			log.Fatalf("can't get local ip address, please set addr in the config")
		}
		cfg.Addr = addr
	}
	if cfg.Name == "" {
		log.Fatalf("mds name must be set")
	}
}

func modifyOpenFiles() {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Fatalf("getting rlimit failed: %s", err)
	}
	log.Info("system limit: ", rLimit)

	if rLimit.Cur >= 102400 && rLimit.Max >= 102400 {
		return
	}

	rLimit.Cur = 1024000
	rLimit.Max = 1024000
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Fatalf("setting rlimit failed: %s", err)
	}
}

func newAuthRegistry() *transport.AuthRegistry {
	reg := transport.NewAuthRegistry()
	mon := transport.NewFakeMonitorClient()
	reg.Register(proto.SenderMDS, &transport.SharedSecretAuthorizer{Mon: mon, Typ: proto.SenderMDS})
	reg.Register(proto.SenderClient, &transport.SharedSecretAuthorizer{Mon: mon, Typ: proto.SenderClient})
	return reg
}
