package channel

import "github.com/samp-server-go/netcore/bitio"

// ControlMessageID identifies a control-channel message.
type ControlMessageID uint8

const (
	MsgHello     ControlMessageID = 0
	MsgWelcome   ControlMessageID = 1
	MsgChallenge ControlMessageID = 3
	MsgNetspeed  ControlMessageID = 4
	MsgLogin     ControlMessageID = 5
	MsgJoin      ControlMessageID = 9
)

// HelloMessage is sent client→server to open the connection.
type HelloMessage struct {
	IsLE            uint8
	NetworkVersion  uint32
	EncryptionToken string
	NetworkFeatures uint16
}

// Encode writes the full length-framed message: id, fields, sentinel.
func (m HelloMessage) Encode(w *bitio.Writer) {
	w.Write(8, uint64(MsgHello))
	w.Write(8, uint64(m.IsLE))
	w.Write(32, uint64(m.NetworkVersion))
	w.WriteString(m.EncryptionToken)
	w.Write(16, uint64(m.NetworkFeatures))
	w.Terminate()
}

// DecodeHelloMessage reads a HelloMessage body (id already consumed).
func DecodeHelloMessage(r *bitio.Reader) (HelloMessage, error) {
	var m HelloMessage
	isLE, err := r.Read(8)
	if err != nil {
		return m, err
	}
	m.IsLE = uint8(isLE)
	ver, err := r.Read(32)
	if err != nil {
		return m, err
	}
	m.NetworkVersion = uint32(ver)
	token, err := r.ReadString()
	if err != nil {
		return m, err
	}
	m.EncryptionToken = token
	features, err := r.Read(16)
	if err != nil {
		return m, err
	}
	m.NetworkFeatures = uint16(features)
	return m, nil
}

// WelcomeMessage is sent server→client after a successful login.
type WelcomeMessage struct {
	Map        string
	GameName   string
	RedirectURL string
}

func (m WelcomeMessage) Encode(w *bitio.Writer) {
	w.Write(8, uint64(MsgWelcome))
	w.WriteString(m.Map)
	w.WriteString(m.GameName)
	w.WriteString(m.RedirectURL)
	w.Terminate()
}

func DecodeWelcomeMessage(r *bitio.Reader) (WelcomeMessage, error) {
	var m WelcomeMessage
	var err error
	if m.Map, err = r.ReadString(); err != nil {
		return m, err
	}
	if m.GameName, err = r.ReadString(); err != nil {
		return m, err
	}
	if m.RedirectURL, err = r.ReadString(); err != nil {
		return m, err
	}
	return m, nil
}

// ChallengeMessage carries the handshake challenge string, re-sent over
// the established control channel.
type ChallengeMessage struct {
	Challenge string
}

func (m ChallengeMessage) Encode(w *bitio.Writer) {
	w.Write(8, uint64(MsgChallenge))
	w.WriteString(m.Challenge)
	w.Terminate()
}

func DecodeChallengeMessage(r *bitio.Reader) (ChallengeMessage, error) {
	var m ChallengeMessage
	s, err := r.ReadString()
	if err != nil {
		return m, err
	}
	m.Challenge = s
	return m, nil
}

// NetspeedMessage reports the client's requested send rate.
type NetspeedMessage struct {
	Rate uint32
}

func (m NetspeedMessage) Encode(w *bitio.Writer) {
	w.Write(8, uint64(MsgNetspeed))
	w.Write(32, uint64(m.Rate))
	w.Terminate()
}

func DecodeNetspeedMessage(r *bitio.Reader) (NetspeedMessage, error) {
	var m NetspeedMessage
	v, err := r.Read(32)
	if err != nil {
		return m, err
	}
	m.Rate = uint32(v)
	return m, nil
}

// LoginMessage carries the client's login credentials/flags.
type LoginMessage struct {
	Response       string
	RequestURL     string
	Flags          uint8
	UniqueID       string
	OnlinePlatform string
}

func (m LoginMessage) Encode(w *bitio.Writer) {
	w.Write(8, uint64(MsgLogin))
	w.WriteString(m.Response)
	w.WriteString(m.RequestURL)
	w.Write(8, uint64(m.Flags))
	w.WriteString(m.UniqueID)
	w.WriteString(m.OnlinePlatform)
	w.Terminate()
}

func DecodeLoginMessage(r *bitio.Reader) (LoginMessage, error) {
	var m LoginMessage
	var err error
	if m.Response, err = r.ReadString(); err != nil {
		return m, err
	}
	if m.RequestURL, err = r.ReadString(); err != nil {
		return m, err
	}
	flags, err := r.Read(8)
	if err != nil {
		return m, err
	}
	m.Flags = uint8(flags)
	if m.UniqueID, err = r.ReadString(); err != nil {
		return m, err
	}
	if m.OnlinePlatform, err = r.ReadString(); err != nil {
		return m, err
	}
	return m, nil
}

// JoinMessage has no fields beyond its id.
type JoinMessage struct{}

func (m JoinMessage) Encode(w *bitio.Writer) {
	w.Write(8, uint64(MsgJoin))
	w.Terminate()
}

func DecodeJoinMessage(r *bitio.Reader) (JoinMessage, error) {
	return JoinMessage{}, nil
}

// PeekMessageID reads the 8-bit message id without consuming further
// bits, for dispatch by the control-channel handler.
func PeekMessageID(r *bitio.Reader) (ControlMessageID, error) {
	v, err := r.Read(8)
	if err != nil {
		return 0, err
	}
	return ControlMessageID(v), nil
}
