package ftdi

// statusBytes is the modem status header FTDI chips prepend to every
// max-size USB packet on the IN endpoint.
const statusBytes = 2

// StripStatus copies the payload of each packet in transfer into dst and
// returns the extended slice. transfer is a concatenation of packets of
// maxPacket bytes (the last one may be short); each starts with two status
// bytes that are not sample data.
func StripStatus(dst, transfer []byte, maxPacket int) []byte {
	if maxPacket <= statusBytes {
		return dst
	}
	for off := 0; off < len(transfer); off += maxPacket {
		end := off + maxPacket
		if end > len(transfer) {
			end = len(transfer)
		}
		if end-off > statusBytes {
			dst = append(dst, transfer[off+statusBytes:end]...)
		}
	}
	return dst
}
