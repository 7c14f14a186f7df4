package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/model/user"
)

type options struct {
	server    string
	character string
	theme     string
	messages  []string
	timeout   time.Duration
	out       io.Writer
}

func main() {
	// .env 可选，仅用于读取默认服务地址。
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "chattester",
		Short: "send messages to a running companion backend",
		Long: `Create a user, open the websocket and print every event the server
sends until each message reaches its reply or error.`,
		Example: `  # 默认连接本地服务
  $ chattester -m "hi there"

  # 多条消息，依次发送
  $ chattester --character AI-BF -m "hello" -m "tell me a joke"

  # 查看可选角色
  $ chattester characters`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.out = cmd.OutOrStdout()
			return run(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", defaultServer(), "后端服务地址")

	flags := cmd.Flags()
	flags.StringVar(&opts.character, "character", "AI-GF", "角色类型: AI-GF 或 AI-BF")
	flags.StringVar(&opts.theme, "theme", "dark", "界面主题: dark 或 light")
	flags.StringArrayVarP(&opts.messages, "message", "m", nil, "要发送的消息，可重复指定")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "整体超时时间")
	_ = cmd.MarkFlagRequired("message")

	cmd.AddCommand(newCharactersCmd(opts))
	return cmd
}

func defaultServer() string {
	if server := strings.TrimSpace(os.Getenv("CHATTESTER_SERVER")); server != "" {
		return server
	}
	return "http://localhost:8080"
}

func parseServer(raw string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server scheme %q", base.Scheme)
	}
	return base, nil
}

func run(ctx context.Context, opts *options) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	out := opts.out
	if out == nil {
		out = os.Stdout
	}

	base, err := parseServer(opts.server)
	if err != nil {
		return err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	created, err := createUser(ctx, &http.Client{Jar: jar}, base, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "user %s (%s, %s)\n", created.ID, created.CharacterType, created.Theme)

	wsURL := *base
	wsURL.Scheme = "ws"
	if base.Scheme == "https" {
		wsURL.Scheme = "wss"
	}
	wsURL.Path = "/ws"

	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL.String(), err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	for _, message := range opts.messages {
		frame, err := sonic.Marshal(chat.Inbound{Content: message})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "> %s\n", message)
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		if _, err := awaitTerminal(conn, out); err != nil {
			return err
		}
	}
	return nil
}

func createUser(ctx context.Context, client *http.Client, base *url.URL, opts *options) (user.User, error) {
	body, err := sonic.Marshal(user.CreateUserRequest{
		CharacterType: persona.CharacterType(opts.character),
		Theme:         user.Theme(opts.theme),
	})
	if err != nil {
		return user.User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String()+"/api/users", bytes.NewReader(body))
	if err != nil {
		return user.User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return user.User{}, fmt.Errorf("create user: unexpected status %s", resp.Status)
	}

	var created user.User
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&created); err != nil {
		return user.User{}, fmt.Errorf("decode user: %w", err)
	}
	return created, nil
}

type wireEvent struct {
	Type chat.EventType `json:"type"`
	Data struct {
		IsTyping bool   `json:"isTyping"`
		Content  string `json:"content"`
	} `json:"data"`
}

// awaitTerminal 打印事件直到收到 message 或 error，返回该终止事件。
func awaitTerminal(conn *websocket.Conn, out io.Writer) (wireEvent, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return wireEvent{}, fmt.Errorf("read event: %w", err)
		}

		var evt wireEvent
		if err := sonic.Unmarshal(data, &evt); err != nil {
			return wireEvent{}, fmt.Errorf("decode event: %w", err)
		}

		switch evt.Type {
		case chat.EventTyping:
			fmt.Fprintln(out, color.HiBlackString("... typing"))
		case chat.EventMessage:
			fmt.Fprintf(out, "%s %s\n", color.GreenString("<"), evt.Data.Content)
			return evt, nil
		case chat.EventError:
			fmt.Fprintf(out, "%s %s\n", color.RedString("!"), evt.Data.Content)
			return evt, nil
		default:
			fmt.Fprintf(out, "%s %s\n", color.YellowString("?"), string(data))
		}
	}
}
