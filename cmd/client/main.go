// Command client is an interactive terminal client for the room relay.
// It runs a receiver goroutine alongside the command prompt instead of
// the two-pthread split the protocol was originally specified with;
// closing the connection (rather than a POSIX signal) is what wakes the
// receiver out of its blocking read.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"strings"
	"sync"

	"roomrelay/internal/outbound"
	"roomrelay/internal/roomcrypto"
	"roomrelay/internal/wire"
)

const helpText = `Help
====
help                            - this message
message <username> <message>    - send a message to username
message all <message>           - send a message to the room
who                             - find out who is in the room
exit                            - exit the room (and the program)`

func main() {
	addr := flag.String("server", "127.0.0.1:34551", "server address")
	corruptTest := flag.Bool("corrupt-test", false, "occasionally corrupt an outgoing message byte to exercise the NACK/resend path")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("What will your username be (31 max): ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	fmt.Print("Enter the password for the server: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	key, err := roomcrypto.DeriveKey([]byte(password))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to derive key: %v\n", err)
		os.Exit(1)
	}

	c := &client{
		conn:     conn,
		username: username,
		key:      key,
		tracker:  outbound.New(),
		stopped:  make(chan struct{}),
	}

	login := wire.NewHeaderBuilder().
		PacketNumber(0).
		SourceUsername(username).
		DestUsername(wire.ServerUsername).
		Type(wire.TypeLogin).
		Build()
	if _, err := conn.Write(login[:]); err != nil {
		fmt.Fprintf(os.Stderr, "failed to send login: %v\n", err)
		os.Exit(1)
	}
	c.counter = 1

	go c.receive()

	fmt.Println(helpText)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-c.stopped:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if c.handleCommand(line, *corruptTest) {
				return
			}
		}
	}
}

type client struct {
	conn     net.Conn
	username string
	key      roomcrypto.Key
	tracker  *outbound.Tracker
	counter  uint16

	stopOnce sync.Once
	stopped  chan struct{}
}

func (c *client) stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		c.conn.Close()
	})
}

// handleCommand parses one line of user input and reports whether the
// client should exit.
func (c *client) handleCommand(input string, corruptTest bool) bool {
	if len(input) < 3 {
		fmt.Println("That is not a proper command. Type 'help' for options.")
		return false
	}

	position := strings.Index(input, " ")
	if position == -1 {
		switch {
		case input == "who":
			raw := wire.NewHeaderBuilder().
				PacketNumber(c.nextCounter()).
				SourceUsername(c.username).
				DestUsername(wire.ServerUsername).
				Type(wire.TypeWho).
				Build()
			c.conn.Write(raw[:])
			return false
		case input == "exit":
			raw := wire.NewHeaderBuilder().
				PacketNumber(c.nextCounter()).
				SourceUsername(c.username).
				DestUsername(wire.ServerUsername).
				Type(wire.TypeDisconnect).
				Build()
			c.conn.Write(raw[:])
			c.stop()
			return true
		case input == "help":
			fmt.Println(helpText)
			return false
		default:
			fmt.Println("That is not a proper command. Type 'help' for options.")
			return false
		}
	}

	if input[:position] != "message" {
		fmt.Println("That is not a proper command. Type 'help' for options.")
		return false
	}
	if len(input) < 8 {
		fmt.Println("You specify the recipient. Type 'help' for options.")
		return false
	}
	position2 := strings.Index(input[8:], " ")
	var recipient, message string
	if position2 == -1 {
		fmt.Println("You did not specify a message. Type 'help' for options.")
		return false
	}
	position2 += 8
	recipient = input[8:position2]
	message = input[position2+1:]
	if message == "" {
		fmt.Println("You did not specify a message. Type 'help' for options.")
		return false
	}

	c.sendMessage(recipient, message, corruptTest)
	return false
}

func (c *client) sendMessage(recipient, message string, corruptTest bool) {
	ciphertext, err := roomcrypto.Encrypt([]byte(message), c.key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to encrypt: %v\n", err)
		return
	}

	packetNumber := c.nextCounter()
	header := wire.NewHeaderBuilder().
		PacketNumber(packetNumber).
		SourceUsername(c.username).
		DestUsername(recipient).
		Type(wire.TypeMessage).
		Payload(ciphertext).
		Build()

	full := append(append([]byte{}, header[:]...), ciphertext...)

	if err := c.tracker.Track(packetNumber, full); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}

	// Exercises the NACK/resend path on a small fraction of sends when
	// explicitly requested.
	if corruptTest && len(full) > wire.HeaderSize && rand.Intn(6) == 0 {
		full[wire.HeaderSize] = 'a'
		fmt.Println("First byte of message changed to 'a' to test NACK")
	}

	if _, err := c.conn.Write(full); err != nil {
		fmt.Fprintf(os.Stderr, "failed to send message: %v\n", err)
		c.stop()
	}
}

func (c *client) nextCounter() uint16 {
	n := c.counter
	c.counter++
	return n
}

// receive runs until the connection closes, the server sends
// DISCONNECT, or a NACK names a packet this client no longer has, none
// of which this client can recover from.
func (c *client) receive() {
	defer c.stop()

	headerBuf := make([]byte, wire.HeaderSize)
	for {
		if _, err := io.ReadFull(c.conn, headerBuf); err != nil {
			fmt.Println("Socket is closed.")
			return
		}

		h, err := wire.Parse(headerBuf)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Server header sum is bad.")
			continue
		}

		payload := make([]byte, h.DataPacketLength())
		if len(payload) > 0 {
			if _, err := io.ReadFull(c.conn, payload); err != nil {
				fmt.Fprintln(os.Stderr, "Unable to read the right amount of data.")
				continue
			}
		}

		switch h.MessageType() {
		case wire.TypeLogin:
			fmt.Println("You have logged in.")

		case wire.TypeError:
			fmt.Printf("Error - %s\n", payload)

		case wire.TypeWho:
			fmt.Printf("Users - %s\n", payload)

		case wire.TypeAck:
			c.tracker.Ack(h.PacketNumber())

		case wire.TypeMessage:
			c.printMessage(h, payload)

		case wire.TypeDisconnect:
			fmt.Println("Server has disconnected you.")
			return

		case wire.TypeNack:
			frame, ok := c.tracker.Resend(h.PacketNumber())
			if !ok {
				fmt.Fprintln(os.Stderr, "Server Sent a NACK for a packet we don't have.")
				return
			}
			if _, err := c.conn.Write(frame); err != nil {
				return
			}

		default:
			fmt.Fprintln(os.Stderr, "Unsupported Message Type.")
		}
	}
}

func (c *client) printMessage(h wire.ParsedHeader, payload []byte) {
	if h.SourceUsername() == wire.ServerUsername {
		if h.DestUsername() == wire.AllUsername {
			fmt.Printf("(Room) %s says > %s\n", h.SourceUsername(), payload)
		} else {
			fmt.Printf("%s whispers to you > %s\n", h.SourceUsername(), payload)
		}
		return
	}

	cleartext, err := roomcrypto.Decrypt(payload, c.key)
	if err != nil {
		fmt.Printf("Message from %s not able to decrypt.\n", h.SourceUsername())
		return
	}

	if h.DestUsername() == wire.AllUsername {
		fmt.Printf("(Room) %s says > %s\n", h.SourceUsername(), cleartext)
	} else {
		fmt.Printf("%s whispers to you > %s\n", h.SourceUsername(), cleartext)
	}
}
