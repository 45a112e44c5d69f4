package protocol

// Message kind discriminators. Every wire message carries one in its
// "type" field.
const (
	// inbound
	KindLogin            = "login"
	KindPlayerMove       = "player-move"
	KindPlayerMeta       = "player-meta"
	KindMapTransfer      = "map-transfer"
	KindPlayerState      = "player-state-change"
	KindSwitchChange     = "switch-change"
	KindVariableChange   = "variable-change"
	KindSelfSwitchChange = "self-switch-change"
	KindPartyInvite      = "party-invite"
	KindPartyAccept      = "party-accept"
	KindPartyLeave       = "party-leave"
	KindCreateRoom       = "create"
	KindJoinRoom         = "join"
	KindListRooms        = "list-rooms"
	KindWebRTCOffer      = "webrtc-offer"
	KindWebRTCAnswer     = "webrtc-answer"
	KindWebRTCCandidate  = "webrtc-candidate"
	KindPlazaSwitch      = "plaza-switch-change"
	KindPlazaVariable    = "plaza-variable-change"

	// outbound
	KindLoginSuccess       = "login-success"
	KindPlayerJoined       = "player-joined"
	KindPlayerLeft         = "player-left"
	KindError              = "error"
	KindPartyInviteRequest = "party-invite-request"
	KindPartyUpdate        = "party-update"
	KindPartyDisband       = "party-disband"
	KindForceTeleport      = "force-teleport"
	KindRoomCreated        = "room-created"
	KindRoomJoined         = "room-joined"
	KindRoomList           = "room-list"
	KindPlazaFullState     = "plaza-full-state"
	KindPlazaSyncSwitch    = "plaza-sync-switch"
	KindPlazaSyncVariable  = "plaza-sync-variable"
	KindPlazaStateReset    = "plaza-state-reset"
)

// PlayerInfo is the client-supplied metadata for one player.
type PlayerInfo struct {
	Name      string  `json:"name,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction int     `json:"direction"`
	MapID     int     `json:"mapId"`
}

// --- inbound payloads ---

type Login struct {
	PlayerInfo PlayerInfo `json:"playerInfo"`
}

type PlayerMove struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction int     `json:"direction"`
}

type PlayerMeta struct {
	Info PlayerInfo `json:"info"`
}

type MapTransfer struct {
	MapID int `json:"mapId"`
}

type SwitchChange struct {
	ID    int `json:"id"`
	Value any `json:"value"`
}

type VariableChange struct {
	ID    int `json:"id"`
	Value any `json:"value"`
}

type SelfSwitchChange struct {
	MapID      int    `json:"mapId"`
	EventID    int    `json:"eventId"`
	SwitchType string `json:"switchType"`
	Value      any    `json:"value"`
}

type PartyInvite struct {
	TargetID int `json:"targetId"`
}

type PartyAccept struct {
	InviterID int `json:"inviterId"`
}

type CreateRoom struct {
	RoomID string `json:"roomId"`
}

type JoinRoom struct {
	RoomID     string     `json:"roomId"`
	PlayerInfo PlayerInfo `json:"playerInfo"`
}

// --- outbound messages ---

type PlayerEntry struct {
	PlayerID   int        `json:"playerId"`
	PlayerInfo PlayerInfo `json:"playerInfo"`
}

type LoginSuccess struct {
	Type      string        `json:"type"`
	YourID    int           `json:"yourId"`
	GameState any           `json:"gameState"`
	Players   []PlayerEntry `json:"players"`
}

func NewLoginSuccess(yourID int, gameState any, players []PlayerEntry) LoginSuccess {
	return LoginSuccess{Type: KindLoginSuccess, YourID: yourID, GameState: gameState, Players: players}
}

type PlayerJoined struct {
	Type       string     `json:"type"`
	PlayerID   int        `json:"playerId"`
	PlayerInfo PlayerInfo `json:"playerInfo"`
}

func NewPlayerJoined(playerID int, info PlayerInfo) PlayerJoined {
	return PlayerJoined{Type: KindPlayerJoined, PlayerID: playerID, PlayerInfo: info}
}

type PlayerLeft struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
}

func NewPlayerLeft(playerID int) PlayerLeft {
	return PlayerLeft{Type: KindPlayerLeft, PlayerID: playerID}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: KindError, Message: message}
}

type PartyInviteRequest struct {
	Type     string `json:"type"`
	FromID   int    `json:"fromId"`
	FromName string `json:"fromName"`
}

func NewPartyInviteRequest(fromID int, fromName string) PartyInviteRequest {
	return PartyInviteRequest{Type: KindPartyInviteRequest, FromID: fromID, FromName: fromName}
}

type PartyState struct {
	LeaderID int   `json:"leaderId"`
	Members  []int `json:"members"`
}

type PartyUpdate struct {
	Type  string     `json:"type"`
	Party PartyState `json:"party"`
}

func NewPartyUpdate(leaderID int, members []int) PartyUpdate {
	return PartyUpdate{Type: KindPartyUpdate, Party: PartyState{LeaderID: leaderID, Members: members}}
}

type PartyDisband struct {
	Type string `json:"type"`
}

func NewPartyDisband() PartyDisband {
	return PartyDisband{Type: KindPartyDisband}
}

type ForceTeleport struct {
	Type      string  `json:"type"`
	MapID     int     `json:"mapId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction int     `json:"direction"`
}

func NewForceTeleport(mapID int, x, y float64, direction int) ForceTeleport {
	return ForceTeleport{Type: KindForceTeleport, MapID: mapID, X: x, Y: y, Direction: direction}
}

type RoomCreated struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

func NewRoomCreated(roomID string) RoomCreated {
	return RoomCreated{Type: KindRoomCreated, RoomID: roomID}
}

type RoomJoined struct {
	Type         string        `json:"type"`
	RoomID       string        `json:"roomId"`
	YourID       int           `json:"yourId"`
	OtherPlayers []PlayerEntry `json:"otherPlayers"`
	IsPlaza      bool          `json:"isPlaza,omitempty"`
}

func NewRoomJoined(roomID string, seat int, others []PlayerEntry, isPlaza bool) RoomJoined {
	return RoomJoined{Type: KindRoomJoined, RoomID: roomID, YourID: seat, OtherPlayers: others, IsPlaza: isPlaza}
}

type RoomSummary struct {
	ID         string `json:"id"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	IsFull     bool   `json:"isFull"`
}

type RoomList struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

func NewRoomList(rooms []RoomSummary) RoomList {
	return RoomList{Type: KindRoomList, Rooms: rooms}
}

type PlazaFullState struct {
	Type      string      `json:"type"`
	Switches  map[int]any `json:"switches"`
	Variables map[int]any `json:"variables"`
}

func NewPlazaFullState(switches, variables map[int]any) PlazaFullState {
	return PlazaFullState{Type: KindPlazaFullState, Switches: switches, Variables: variables}
}

type PlazaSyncSwitch struct {
	Type  string `json:"type"`
	ID    int    `json:"id"`
	Value any    `json:"value"`
}

func NewPlazaSyncSwitch(id int, value any) PlazaSyncSwitch {
	return PlazaSyncSwitch{Type: KindPlazaSyncSwitch, ID: id, Value: value}
}

type PlazaSyncVariable struct {
	Type  string `json:"type"`
	ID    int    `json:"id"`
	Value any    `json:"value"`
}

func NewPlazaSyncVariable(id int, value any) PlazaSyncVariable {
	return PlazaSyncVariable{Type: KindPlazaSyncVariable, ID: id, Value: value}
}

type PlazaStateReset struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewPlazaStateReset(message string) PlazaStateReset {
	return PlazaStateReset{Type: KindPlazaStateReset, Message: message}
}
