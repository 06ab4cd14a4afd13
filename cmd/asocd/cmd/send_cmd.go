package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/asoc-io/asoc"
	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/session"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var flagSendWait time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <peer-addr> <file>",
	Short: "connect to a single static peer and stream one file to it",
	Args:  cobra.ExactArgs(2),
	RunE:  runSend,
}

func init() {
	addCommonFlags(sendCmd)
	sendCmd.Flags().DurationVar(&flagSendWait, "wait", 10*time.Second, "how long to wait for the session to establish")
}

func runSend(cmd *cobra.Command, args []string) error {
	peerAddr, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	flagStaticPeers = []string{peerAddr}
	node, err := buildNode()
	if err != nil {
		return err
	}
	if err := node.Start(); err != nil {
		return err
	}
	defer node.Shutdown()

	peerID := session.StaticPeerID(peerAddr)

	ctx, cancel := context.WithTimeout(context.Background(), flagSendWait)
	defer cancel()
	if err := waitForPeer(ctx, node, peerID); err != nil {
		return fmt.Errorf("asocd send: %w", err)
	}

	bar := progressbar.DefaultBytes(int64(len(data)), "sending "+humanize.Bytes(uint64(len(data))))
	handle, err := node.Stream(context.Background(), peerID, data)
	if err != nil {
		return err
	}
	_ = bar.Set(len(data))

	if _, err := handle.Wait(context.Background()); err != nil {
		return fmt.Errorf("asocd send: stream failed: %w", err)
	}
	cmd.Printf("\nsent %s to %s\n", humanize.Bytes(uint64(len(data))), peerID.Short())
	return nil
}

func waitForPeer(ctx context.Context, node *asoc.Node, peerID identity.NodeID) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, p := range node.Peers() {
			if p == peerID {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
