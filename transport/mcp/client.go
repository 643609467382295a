package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/service"
)

// Client is a thin MCP server that proxies tool calls to the REST API
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL, version string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Cheese Pants",
		c.version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Cheese Pants - MCP Interface

Cheese Pants is a real-time word game: players take turns adding one word to a
shared sentence until every required word has been used and the sentence ends
with punctuation. Games are played over WebSocket; these tools are read-only.

AVAILABLE TOOLS:
- list_games: List games, newest first, optionally filtered by phase
- game_state: Show one game's players, turn and sentence
- game_summary: End-of-game report with rankings and achievements
- game_rules: How the game is played
- server_stats: Active rooms, stored games and open connections`),
	)

	c.registerTools()
}

func gameIDSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Game ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List games ordered by start time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"phase": map[string]interface{}{
					"type":        "string",
					"description": "Only games in this phase",
					"enum":        []string{"lobby", "playing", "complete"},
				},
				"order": map[string]interface{}{
					"type":        "string",
					"description": "asc or desc (default desc)",
					"enum":        []string{"asc", "desc"},
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Games per page (default 20, max 100)",
				},
				"page": map[string]interface{}{
					"type":        "number",
					"description": "Page number, starting at 1",
				},
			},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current state of a game",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"game_id": gameIDSchema()},
			Required:   []string{"game_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_summary",
		Description: "Get the end-of-game report: sentence, rankings and achievements",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"game_id": gameIDSchema()},
			Required:   []string{"game_id"},
		},
	}, c.handleGameSummary)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Explain how Cheese Pants is played",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Show active rooms, stored games and open connections",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)
}

// GetMCPServer returns the underlying MCP server, e.g. for stdio serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers one JSON-RPC message per POST request
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// Notifications have no response.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func argString(request mcp.CallToolRequest, key string) string {
	v, _ := request.GetArguments()[key].(string)
	return strings.TrimSpace(v)
}

func argInt(request mcp.CallToolRequest, key string) int {
	switch v := request.GetArguments()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func requireGameID(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	id := argString(request, "game_id")
	if id == "" {
		return "", mcp.NewToolResultError("game_id is required")
	}
	return id, nil
}

// Tool handlers

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := url.Values{}
	if phase := argString(request, "phase"); phase != "" {
		q.Set("phase", phase)
	}
	if order := argString(request, "order"); order != "" {
		q.Set("order", order)
	}
	if limit := argInt(request, "limit"); limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if page := argInt(request, "page"); page > 0 {
		q.Set("page", strconv.Itoa(page))
	}

	path := "/api/games"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp service.ListResponse
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameList(&resp)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, errResult := requireGameID(request)
	if errResult != nil {
		return errResult, nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", "/api/games/"+url.PathEscape(gameID)+"/state", nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleGameSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, errResult := requireGameID(request)
	if errResult != nil {
		return errResult, nil
	}

	var summary engine.Summary
	if err := c.apiCall(ctx, "GET", "/api/games/"+url.PathEscape(gameID)+"/summary", nil, &summary); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSummary(&summary)), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rules service.Rules
	if err := c.apiCall(ctx, "GET", "/api/rules", nil, &rules); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRules(&rules)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.ServerStats
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Active rooms: %d\nStored games: %d\nOpen connections: %d",
		stats.ActiveRooms, stats.StoredGames, stats.OpenConnections)), nil
}

// Formatting helpers

func formatGameList(resp *service.ListResponse) string {
	if len(resp.Games) == 0 {
		return "No games found"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Games (page %d of %d, %d total):\n", resp.Page, max(resp.TotalPages, 1), resp.TotalGames)
	for _, g := range resp.Games {
		live := ""
		if g.Live {
			live = " [live]"
		}
		fmt.Fprintf(&b, "- %s%s | %s | %d players | %d words | required %d/%d",
			g.ID, live, g.Phase, len(g.Players), g.WordCount, g.RequiredMatched, len(g.RequiredWords))
		if g.CurrentPlayer != "" {
			fmt.Fprintf(&b, " | turn: %s", g.CurrentPlayer)
		}
		b.WriteString("\n")
	}
	if resp.HasNext {
		fmt.Fprintf(&b, "More games on page %d\n", resp.Page+1)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Game %s | Phase: %s\n", state.GameID, state.Phase)

	required := make([]string, len(state.RequiredWords))
	for i, w := range state.RequiredWords {
		mark := " "
		if i < len(state.HasRequiredWords) && state.HasRequiredWords[i] {
			mark = "x"
		}
		required[i] = fmt.Sprintf("[%s] %s", mark, w)
	}
	fmt.Fprintf(&b, "Required words: %s\n", strings.Join(required, ", "))

	if state.TurnTimeLimit > 0 {
		fmt.Fprintf(&b, "Turn time limit: %ds\n", state.TurnTimeLimit)
	} else {
		b.WriteString("Turn time limit: none\n")
	}

	b.WriteString("\nPlayers:\n")
	if len(state.Players) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, p := range state.Players {
		var tags []string
		if p.ID == state.StartedByID {
			tags = append(tags, "host")
		}
		if state.Phase == engine.PhasePlaying && p.IsCurrentTurn {
			tags = append(tags, "turn")
		}
		online := false
		for _, id := range state.ConnectedPlayers {
			if id == p.ID {
				online = true
				break
			}
		}
		if !online {
			tags = append(tags, "offline")
		}
		line := "  " + p.Name
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\nSentence: ")
	if len(state.Words) == 0 {
		b.WriteString("(empty)")
	} else {
		b.WriteString(strings.Join(state.Sentence(), " "))
	}
	return b.String()
}

func formatSummary(s *engine.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game %s | Phase: %s\n", s.GameID, s.Phase)
	fmt.Fprintf(&b, "Sentence: %s\n", s.Sentence)
	fmt.Fprintf(&b, "Words: %d | Characters: %d | Longest word: %s\n", s.WordCount, s.SentenceLength, s.LongestWord)
	if s.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", s.Duration)
	}

	if len(s.Rankings) > 0 {
		b.WriteString("\nRankings:\n")
		for i, p := range s.Rankings {
			fmt.Fprintf(&b, "  %d. %s - %d words, avg length %.1f, %d required\n",
				i+1, p.Name, p.WordsAdded, p.AvgWordLength, p.RequiredWordsUsed)
		}
	}
	if len(s.Achievements) > 0 {
		b.WriteString("\nAchievements:\n")
		for _, a := range s.Achievements {
			fmt.Fprintf(&b, "  %s: %s\n", a.Title, a.Player)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRules(r *service.Rules) string {
	var b strings.Builder
	b.WriteString(r.Summary)
	b.WriteString("\n\nRules:\n")
	for _, rule := range r.Rules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}
	if len(r.DefaultWords) > 0 {
		fmt.Fprintf(&b, "\nDefault required words: %s\n", strings.Join(r.DefaultWords, ", "))
	}
	if len(r.Messages) > 0 {
		fmt.Fprintf(&b, "WebSocket message types: %s\n", strings.Join(r.Messages, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
