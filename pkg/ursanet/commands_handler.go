package ursanet

import (
	"context"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
)

// handleCommand executes a single caller command against the swarm
// (C7). It never blocks beyond dispatching the underlying sub-protocol
// call; block-exchange completion arrives later through the swarm event
// stream, and request/response replies are delivered by a goroutine the
// handler spawns.
func (s *Service) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdGetBlock:
		s.handleGetBlock(ctx, cmd)
	case CmdGetPeers:
		s.handleGetPeers(cmd)
	case CmdStartProviding:
		s.handleStartProviding(ctx, cmd)
	case CmdSendRequest:
		s.handleSendRequest(ctx, cmd)
	case CmdSendResponse:
		s.handleSendResponse(cmd)
	case CmdPublish:
		s.handlePublish(ctx, cmd)
	case CmdCancel:
		s.behaviour.Cancel(cmd.WaiterToken)
	}
}

func (s *Service) handleGetBlock(ctx context.Context, cmd Command) {
	peers := s.behaviour.Peers()
	if len(peers) == 0 {
		deliver(cmd.Reply, Result{Err: ErrNoPeers})
		return
	}

	s.pending.register(cmd.CID, cmd.Reply)
	switch cmd.Mode {
	case ModeSync:
		s.behaviour.SyncBlock(ctx, cmd.CID, peers)
	default:
		s.behaviour.GetBlock(ctx, cmd.CID, peers)
	}
}

func (s *Service) handleGetPeers(cmd Command) {
	if cmd.PeersReply == nil {
		return
	}
	select {
	case cmd.PeersReply <- PeersResult{Peers: s.behaviour.Peers()}:
	default:
		logWarn("get-peers: reply sink closed")
	}
	close(cmd.PeersReply)
}

func (s *Service) handleStartProviding(ctx context.Context, cmd Command) {
	var advertised []cid.Cid
	if len(cmd.CIDs) > 0 {
		contextID := uuid.New()
		if err := s.behaviour.PublishAd(ctx, cmd.CIDs, contextID[:], false); err != nil {
			// v1: provider-layer errors are swallowed, per §9/§4.6.
			logWarn("start-providing: publish advertisement failed", "err", err)
		} else {
			advertised = cmd.CIDs
		}
	}
	if cmd.ProvidingReply == nil {
		return
	}
	cmd.ProvidingReply <- ProvidingResult{CIDs: advertised}
	close(cmd.ProvidingReply)
}

func (s *Service) handleSendRequest(ctx context.Context, cmd Command) {
	go func() {
		resp, err := s.behaviour.SendRequest(ctx, cmd.Peer, cmd.Request)
		if cmd.RequestReply == nil {
			return
		}
		cmd.RequestReply <- RequestResult{Response: resp, Err: err}
		close(cmd.RequestReply)
	}()
}

func (s *Service) handleSendResponse(cmd Command) {
	if cmd.AckReply == nil {
		return
	}
	cmd.AckReply <- AckResult{Err: ErrSendResponseUnimplemented}
	close(cmd.AckReply)
}

func (s *Service) handlePublish(ctx context.Context, cmd Command) {
	if err := s.behaviour.Publish(ctx, cmd.Topic, cmd.Message); err != nil {
		logWarn("publish failed", "topic", cmd.Topic, "err", err)
	}
}
