package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/meshchat"
	"github.com/outofforest/meshchat/wire"
	"github.com/outofforest/parallel"
)

const (
	cmdList = `\list`
	cmdHelp = `\help`
	cmdQuit = `\quit`
)

type chatNode interface {
	Run(ctx context.Context) error
	SendChat(ctx context.Context, content string) (wire.MessageID, error)
	Peers() []meshchat.PeerInfo
	Leave(ctx context.Context) error
}

type console struct {
	node chatNode
	in   io.Reader

	nickStyle   lipgloss.Style
	noticeStyle lipgloss.Style

	mu  sync.Mutex
	out io.Writer
}

func newConsole(node chatNode, in io.Reader, out io.Writer) *console {
	renderer := lipgloss.NewRenderer(out)
	return &console{
		node:        node,
		in:          in,
		out:         out,
		nickStyle:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		noticeStyle: renderer.NewStyle().Faint(true),
	}
}

// Run runs the node and the console until user quits.
func (c *console) Run(ctx context.Context, events <-chan any) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("node", parallel.Exit, c.node.Run)
		spawn("printer", parallel.Continue, func(ctx context.Context) error {
			for event := range events {
				c.printEvent(event)
			}
			return nil
		})
		spawn("input", parallel.Continue, c.runInput)

		return nil
	})
}

func (c *console) runInput(ctx context.Context) error {
	log := logger.Get(ctx)

	// Reads from the terminal can't be interrupted, so the reader lives outside the task group.
	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			case lines <- scanner.Text():
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error("Reading input failed", zap.Error(err))
		}
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case line, ok = <-lines:
		}
		if !ok {
			return c.quit(ctx)
		}

		switch line = strings.TrimSpace(line); line {
		case "":
		case cmdQuit:
			return c.quit(ctx)
		case cmdList:
			c.printPeers()
		case cmdHelp:
			c.printHelp()
		default:
			if _, err := c.node.SendChat(ctx, line); err != nil {
				c.println(c.noticeStyle.Render("Message not sent: " + err.Error()))
			}
		}
	}
}

func (c *console) quit(ctx context.Context) error {
	if err := c.node.Leave(ctx); err != nil && !errors.Is(err, meshchat.ErrLeft) {
		return err
	}
	return nil
}

func (c *console) printEvent(event any) {
	switch e := event.(type) {
	case meshchat.ChatReceived:
		c.println(fmt.Sprintf("%s> %s", c.nickStyle.Render(e.Nickname), e.Content))
	case meshchat.PeerConnected:
		c.println(c.noticeStyle.Render(fmt.Sprintf("Peer %s connected", e.Peer.ID)))
	case meshchat.PeerLeft:
		c.println(c.noticeStyle.Render(e.Nickname + " has left the chat"))
	}
}

func (c *console) printPeers() {
	peers := c.node.Peers()

	lines := make([]string, 0, len(peers)+2)
	lines = append(lines, "Connected peers:")
	for _, p := range peers {
		lines = append(lines, fmt.Sprintf("  Node %s: %s (%s) - %s", p.ID, p.Address, p.Direction,
			c.nickStyle.Render(p.Nickname)))
	}
	lines = append(lines, fmt.Sprintf("Total connections: %d", len(peers)))
	c.println(strings.Join(lines, "\n"))
}

func (c *console) printHelp() {
	c.println(strings.Join([]string{
		"Available commands:",
		`  \list     - Show connected peers`,
		`  \help     - Show this help message`,
		`  \quit     - Leave the chat and quit`,
		"  <message> - Send a chat message to all peers",
	}, "\n"))
}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, s)
}
