package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/peer-link/internal/config"
	"github.com/rudransh-shrivastava/peer-link/internal/logger"
	"github.com/rudransh-shrivastava/peer-link/internal/node"
	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

var (
	deviceName string
	connectTo  string
	acceptAll  bool
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a device node connected to the coordinator",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if deviceName != "" {
			cfg.Node.DeviceName = deviceName
		}

		var n *node.Node
		requested := false

		n, err = node.New(node.Options{
			CoordinatorURL:    cfg.Node.CoordinatorURL,
			DeviceName:        cfg.Node.DeviceName,
			STUNServers:       cfg.Node.STUNServers,
			HeartbeatInterval: cfg.Node.HeartbeatInterval.Std(),
			Logger:            log,
			AcceptIncoming: func(fromID, fromName string) bool {
				return acceptAll
			},
			OnDataChannel: func(peerID string, dc *webrtc.DataChannel) {
				log.WithField("peer", peerID).Info("Direct channel ready for transfer")
			},
			OnServerMode: func(reason string) {
				log.WithField("reason", reason).Info("Using server-relayed transfer")
			},
			OnDevicesUpdate: func(devices []protocol.DeviceInfo) {
				for _, d := range devices {
					log.WithFields(logrus.Fields{"id": d.ID, "name": d.Name}).Info("Device available")
					if connectTo != "" && !requested && (d.ID == connectTo || d.Name == connectTo) {
						requested = true
						if err := n.RequestConnection(d.ID); err != nil {
							log.WithError(err).Warn("Failed to request connection")
							requested = false
						}
					}
				}
			},
		})
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		err = n.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

func init() {
	nodeCmd.Flags().StringVar(&deviceName, "name", "", "device display name")
	nodeCmd.Flags().StringVar(&connectTo, "connect", "", "device id or name to request a direct connection to")
	nodeCmd.Flags().BoolVar(&acceptAll, "accept-all", false, "accept every incoming connection request")
}
