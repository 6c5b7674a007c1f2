package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	guildApplication "github.com/happyfeetx/kiosk/guild/application"
	"github.com/happyfeetx/kiosk/pkg/eventworker"
)

// Session wraps one sharded gateway connection. It implements the scheduler's
// chat-platform boundary (unban, role removal, channel send) and feeds the
// shared state cache from inbound message events.
type Session struct {
	ShardID int

	dg    *discordgo.Session
	state *guildApplication.State
	pool  *eventworker.Pool
}

func NewSession(token string, shardID, shardCount int, state *guildApplication.State, pool *eventworker.Pool) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	dg.Identify.Shard = &[2]int{shardID, shardCount}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent

	s := &Session{ShardID: shardID, dg: dg, state: state, pool: pool}
	dg.AddHandler(s.onReady)
	dg.AddHandler(s.onMessageCreate)
	return s, nil
}

func (s *Session) Open() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("open shard %d: %w", s.ShardID, err)
	}
	return nil
}

func (s *Session) Close() error {
	return s.dg.Close()
}

// UpdateStatus sets the rotating presence text.
func (s *Session) UpdateStatus(status string) error {
	return s.dg.UpdateGameStatus(0, status)
}

// GuildCount returns the number of guilds this shard currently tracks.
func (s *Session) GuildCount() int {
	return len(s.dg.State.Guilds)
}

// --- scheduler session boundary ---

func (s *Session) UnbanUser(ctx context.Context, guildID, userID string) error {
	return s.dg.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx))
}

func (s *Session) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return s.dg.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (s *Session) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := s.dg.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

// --- event handlers ---

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	logrus.WithFields(logrus.Fields{
		"shard":  s.ShardID,
		"guilds": len(r.Guilds),
	}).Info("shard ready")
}

// onMessageCreate runs on the gateway goroutine: only synchronous cache
// lookups happen here. Anything that calls back into the REST API is handed
// to the worker pool, keyed by channel so replies keep their order.
func (s *Session) onMessageCreate(dg *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if s.state.IsBlockedUser(m.Author.ID) || s.state.IsBlockedChannel(m.ChannelID) {
		return
	}

	s.state.IncrementMessageCount(m.Author.ID)

	if s.state.MatchesFilter(m.GuildID, m.Content) {
		s.dispatch(m.ChannelID, func(context.Context) error {
			if err := dg.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
				return fmt.Errorf("delete filtered message: %w", err)
			}
			return nil
		})
		return
	}

	cfg := s.state.Config(m.GuildID)
	if !cfg.ReactionResponse {
		return
	}

	if response, ok := s.state.TextResponse(m.GuildID, m.Content); ok {
		s.dispatch(m.ChannelID, func(context.Context) error {
			if _, err := dg.ChannelMessageSend(m.ChannelID, response); err != nil {
				return fmt.Errorf("send text reaction: %w", err)
			}
			return nil
		})
	}
	if emoji, ok := s.state.EmojiResponse(m.GuildID, m.Content); ok {
		s.dispatch(m.ChannelID, func(context.Context) error {
			if err := dg.MessageReactionAdd(m.ChannelID, m.ID, emoji); err != nil {
				return fmt.Errorf("add emoji reaction: %w", err)
			}
			return nil
		})
	}
}

func (s *Session) dispatch(channelID string, fn func(context.Context) error) {
	if s.pool == nil {
		if err := fn(context.Background()); err != nil {
			logrus.WithField("channel_id", channelID).WithError(err).Warn("event handler failed")
		}
		return
	}
	s.pool.Dispatch(eventworker.Job{ChannelID: channelID, Handler: fn})
}
