package packet_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/pior/sshed/packet"
)

// ExampleEncodeHeaderLine shows how values are quoted to keep their kind.
func ExampleEncodeHeaderLine() {
	for _, v := range []packet.Value{
		packet.Int(255),
		packet.String("255"),
		packet.Float(2),
		packet.Bool(true),
		packet.String(" padded "),
	} {
		line, err := packet.EncodeHeaderLine("Name", v)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(line)
	}
	// Output:
	// Name: 255
	// Name: "255"
	// Name: 2.0
	// Name: True
	// Name: " padded "
}

// ExampleDecodeHeaders demonstrates typed decoding.
func ExampleDecodeHeaders() {
	h, err := packet.DecodeHeaders([]byte("Integer: 255\nFloat: 3.1415927\nTrue: True\nNone: None\n"))
	if err != nil {
		log.Fatal(err)
	}

	for name, v := range h.All() {
		fmt.Printf("%s: %s %s\n", name, v.Kind(), v)
	}
	// Output:
	// Integer: Integer 255
	// Float: Float 3.1415927
	// True: Boolean True
	// None: String None
}

// ExampleChannel_Send demonstrates the wire format of a packet.
func ExampleChannel_Send() {
	var conn bytes.Buffer
	ch := packet.NewChannel(&conn)

	h := packet.NewHeaders(
		packet.Header{Name: packet.HeaderVersion, Value: packet.Int(packet.ProtocolVersion)},
		packet.Header{Name: packet.HeaderFilename, Value: packet.String("a.txt")},
	)
	if err := ch.Send(context.Background(), h, []byte("hello")); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%q", conn.String())
	// Output: "Version: 1\nFilename: a.txt\nSize: 5\n\nhello"
}

// ExampleChannel_Receive demonstrates receiving a packet.
func ExampleChannel_Receive() {
	conn := strings.NewReader("Version: 1\nFilename: a.txt\nSize: 5\n\nhello")
	ch := packet.NewChannel(struct {
		io.Reader
		io.Writer
	}{conn, io.Discard})

	pkt, err := ch.Receive(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	filename, _ := pkt.Headers.GetString(packet.HeaderFilename)
	fmt.Printf("Filename: %s\n", filename)
	fmt.Printf("Body: %s\n", pkt.Body)
	// Output:
	// Filename: a.txt
	// Body: hello
}
