// Package packet implements the sshed wire protocol: typed headers followed
// by a byte payload, exchanged over a stream connection that may deliver
// data in arbitrary chunks.
//
// # Wire Format
//
// A packet is a block of header lines, a blank line, then exactly Size body
// bytes:
//
//	Version: 1
//	Filename: notes.txt
//	Differential: True
//	Size: 5
//
//	hello
//
// Each line is "name: contents". Contents are typed on decode, first match
// wins:
//
//   - Integer: base 10, optional sign (255, -3)
//   - Float: decimal literal, Inf, Infinity or NaN (3.1415927, 1e+06, NaN);
//     integers beyond int64 included
//   - Boolean: exactly True or False
//   - String: everything else; surrounding double quotes are stripped
//
// Strings that would read back as another kind, or that carry edge
// whitespace, are quoted by the encoder ("255", " padded "). Names are quoted
// the same way when they carry edge whitespace or a colon.
//
// Size is reserved: the sender always computes it from the body.
//
// # Core Types
//
//   - Value: a typed header value (Int, Float, Bool, String)
//   - Headers: an ordered set of uniquely named values
//   - StreamBuffer: incremental reads by exact length or up to a delimiter
//   - Channel: send and receive packets on one connection
//
// # Sending and Receiving
//
//	ch := packet.NewChannel(conn)
//
//	h := packet.NewHeaders(
//	    packet.Header{Name: packet.HeaderVersion, Value: packet.Int(packet.ProtocolVersion)},
//	    packet.Header{Name: packet.HeaderFilename, Value: packet.String("notes.txt")},
//	)
//	err := ch.SendFrom(ctx, h, file)
//
//	pkt, err := ch.Receive(ctx)
//
// A receiver that must validate headers before accepting a body splits the
// receive in two:
//
//	h, err := ch.ReceiveHeaders(ctx)
//	if err := packet.CheckVersion(h); err != nil {
//	    conn.Close() // do not read the body
//	    return err
//	}
//	_, err = ch.ReadBody(ctx, h, staging)
//
// # Error Handling
//
// The package defines error types that indicate connection state:
//
//   - ConnectionClosedError: the peer ended the stream, CLOSE connection.
//     This is the normal end of a session.
//   - ConnectionError: other I/O failure, CLOSE connection
//   - MalformedPacketError: framing lost, CLOSE connection
//   - UnknownVersionError: unsupported protocol, CLOSE connection
//   - EncodeError: header not representable, nothing was written, connection
//     can be REUSED
//
// Use ShouldCloseConnection to determine error handling strategy:
//
//	if err != nil {
//	    if packet.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// # Thread Safety
//
// StreamBuffer and Channel are not safe for concurrent use. Each connection
// is owned by a single goroutine.
package packet
