// Package server hosts the UDP ingest path: it decodes measurement packets
// off the wire, drives one filter per tracked object and fans the resulting
// estimates out to the web hub and downstream feed.
package server

import (
	"encoding/binary"
	"fmt"
	"math"

	"tracker-go/ukf"
)

const (
	// 'T' 'K' little endian
	PacketMagic  = 0x4B54
	PacketHdrLen = 16

	sensorPosition     = 0x01
	sensorRangeBearing = 0x02

	maxValues = 8
)

// Measurement is one decoded wire packet: the object it belongs to plus the
// raw observation handed to that object's filter.
type Measurement struct {
	ObjectID uint32
	Packet   ukf.Packet
}

// EncodeMeasurement renders m into the wire layout:
//
//	magic(2) objectID(4) sensor(1) count(1) timestampUs(8) values(8*count)
func EncodeMeasurement(m Measurement) ([]byte, error) {
	code, err := sensorCode(m.Packet.Sensor)
	if err != nil {
		return nil, err
	}
	n := len(m.Packet.Values)
	if n == 0 || n > maxValues {
		return nil, fmt.Errorf("measurement has %d values", n)
	}

	buf := make([]byte, PacketHdrLen+8*n)
	binary.LittleEndian.PutUint16(buf[0:2], PacketMagic)
	binary.LittleEndian.PutUint32(buf[2:6], m.ObjectID)
	buf[6] = code
	buf[7] = byte(n)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.Packet.TimestampUs))
	for i, v := range m.Packet.Values {
		binary.LittleEndian.PutUint64(buf[16+8*i:], math.Float64bits(v))
	}
	return buf, nil
}

// ParseMeasurement decodes one packet from the start of data and returns it
// with the number of bytes consumed.
func ParseMeasurement(data []byte) (Measurement, int, error) {
	if len(data) < PacketHdrLen {
		return Measurement{}, 0, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint16(data[0:2]); magic != PacketMagic {
		return Measurement{}, 0, fmt.Errorf("invalid magic: 0x%x", magic)
	}

	sensor, err := sensorType(data[6])
	if err != nil {
		return Measurement{}, 0, err
	}
	count := int(data[7])
	if count == 0 || count > maxValues {
		return Measurement{}, 0, fmt.Errorf("invalid value count %d", count)
	}
	total := PacketHdrLen + 8*count
	if len(data) < total {
		return Measurement{}, 0, fmt.Errorf("packet truncated: want %d bytes, have %d", total, len(data))
	}

	values := make([]float64, count)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[16+8*i:]))
	}

	return Measurement{
		ObjectID: binary.LittleEndian.Uint32(data[2:6]),
		Packet: ukf.Packet{
			Sensor:      sensor,
			Values:      values,
			TimestampUs: int64(binary.LittleEndian.Uint64(data[8:16])),
		},
	}, total, nil
}

func sensorCode(s ukf.SensorType) (byte, error) {
	switch s {
	case ukf.SensorPosition:
		return sensorPosition, nil
	case ukf.SensorRangeBearing:
		return sensorRangeBearing, nil
	default:
		return 0, fmt.Errorf("unknown sensor type %d", int(s))
	}
}

func sensorType(code byte) (ukf.SensorType, error) {
	switch code {
	case sensorPosition:
		return ukf.SensorPosition, nil
	case sensorRangeBearing:
		return ukf.SensorRangeBearing, nil
	default:
		return 0, fmt.Errorf("unknown sensor code 0x%x", code)
	}
}
