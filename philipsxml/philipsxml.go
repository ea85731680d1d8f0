// Package philipsxml renders the DPUfsImport metadata block that Philips
// scanners embed in the first directory of their TIFF exports. Viewers key
// on this block to recognize the file as a whole slide image.
package philipsxml

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Level struct {
	Width  int64
	Height int64
}

// Info carries everything the metadata block derives from one conversion.
// Timestamp should come from the source file, not the wall clock, so that
// converting the same slide twice yields identical bytes.
type Info struct {
	SourceFilename string
	Width          int64
	Height         int64
	PixelSpacing   float64 // millimeters per pixel
	Levels         []Level
	Macro          []byte // JPEG bytes, embedded base64
	Label          []byte
	Timestamp      time.Time
}

// Scanner identity baked into every export.
const (
	manufacturer      = "PHILIPS"
	deviceSerial      = "FMT0411"
	softwareVersion1  = "1.8.6824"
	softwareVersion2  = "20180906_R51"
	softwareVersion3  = "4.0.3"
	rackNumber        = 11
	slotNumber        = 10
	calibrationStatus = "OK"
	interfaceVersion  = "1.8.6824"
	barcode           = "S114-99047-_-A-3"
)

// Generate renders the complete metadata document.
func Generate(info Info) string {
	ts := info.Timestamp
	acquisition := ts.Format("20060102150405") + fmt.Sprintf(".%06d", ts.Nanosecond()/1000)
	calDate := ts.Format("20060102")
	calTime := ts.Format("150405")

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(`<?xml version="1.0" encoding="UTF-8" ?>`)
	line(`<DataObject ObjectType="DPUfsImport">`)

	line("\t"+`<Attribute Name="DICOM_ACQUISITION_DATETIME" Group="0x0008" Element="0x002A" PMSVR="IString">%s</Attribute>`, acquisition)
	line("\t"+`<Attribute Name="DICOM_DATE_OF_LAST_CALIBRATION" Group="0x0018" Element="0x1200" PMSVR="IStringArray">&quot;%s&quot;</Attribute>`, calDate)
	line("\t"+`<Attribute Name="DICOM_DEVICE_SERIAL_NUMBER" Group="0x0018" Element="0x1000" PMSVR="IString">%s</Attribute>`, deviceSerial)
	line("\t"+`<Attribute Name="DICOM_MANUFACTURER" Group="0x0008" Element="0x0070" PMSVR="IString">%s</Attribute>`, manufacturer)
	line("\t"+`<Attribute Name="DICOM_SOFTWARE_VERSIONS" Group="0x0018" Element="0x1020" PMSVR="IStringArray">&quot;%s&quot; &quot;%s&quot; &quot;%s&quot;</Attribute>`, softwareVersion1, softwareVersion2, softwareVersion3)
	line("\t"+`<Attribute Name="DICOM_TIME_OF_LAST_CALIBRATION" Group="0x0018" Element="0x1201" PMSVR="IStringArray">&quot;%s&quot;</Attribute>`, calTime)
	line("\t"+`<Attribute Name="PIIM_DP_SCANNER_CALIBRATION_STATUS" Group="0x101D" Element="0x100A" PMSVR="IString">%s</Attribute>`, calibrationStatus)
	line("\t"+`<Attribute Name="PIIM_DP_SCANNER_RACK_NUMBER" Group="0x101D" Element="0x1007" PMSVR="IUInt16">%d</Attribute>`, rackNumber)
	line("\t"+`<Attribute Name="PIIM_DP_SCANNER_SLOT_NUMBER" Group="0x101D" Element="0x1008" PMSVR="IUInt16">%d</Attribute>`, slotNumber)

	line("\t" + `<Attribute Name="PIM_DP_SCANNED_IMAGES" Group="0x301D" Element="0x1003" PMSVR="IDataObjectArray">`)
	line("\t\t" + `<Array>`)

	writeWSIImage(line, info)
	if len(info.Macro) > 0 {
		writeAssociatedImage(line, "MACROIMAGE", info.Macro)
	}
	if len(info.Label) > 0 {
		writeAssociatedImage(line, "LABELIMAGE", info.Label)
	}

	line("\t\t" + `</Array>`)
	line("\t" + `</Attribute>`)

	line("\t"+`<Attribute Name="PIM_DP_UFS_BARCODE" Group="0x301D" Element="0x1002" PMSVR="IString">%s</Attribute>`, barcode)
	line("\t"+`<Attribute Name="PIM_DP_UFS_INTERFACE_VERSION" Group="0x301D" Element="0x1001" PMSVR="IString">%s</Attribute>`, interfaceVersion)

	b.WriteString(`</DataObject>`)
	return b.String()
}

func writeWSIImage(line func(string, ...any), info Info) {
	line("\t\t\t" + `<DataObject ObjectType="DPScannedImage">`)

	derivation := fmt.Sprintf(
		`tiff-useBigTIFF=0-useRgb=0-levels=%d,10002,10000,10001-processing=0-q80-sourceFilename=&quot;%s&quot;;PHILIPS UFS V%s | Quality=2 | DWT=1 | Compressor=16`,
		len(info.Levels), info.SourceFilename, softwareVersion1)
	line("\t\t\t\t"+`<Attribute Name="DICOM_DERIVATION_DESCRIPTION" Group="0x0008" Element="0x2111" PMSVR="IString">%s</Attribute>`, derivation)

	line("\t\t\t\t" + `<Attribute Name="DICOM_LOSSY_IMAGE_COMPRESSION_METHOD" Group="0x0028" Element="0x2114" PMSVR="IStringArray">&quot;PHILIPS_DP_1_0&quot; &quot;PHILIPS_TIFF_1_0&quot;</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="DICOM_LOSSY_IMAGE_COMPRESSION_RATIO" Group="0x0028" Element="0x2112" PMSVR="IDoubleArray">&quot;3&quot; &quot;3&quot;</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="PIM_DP_IMAGE_TYPE" Group="0x301D" Element="0x1004" PMSVR="IString">WSI</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="UFS_IMAGE_PIXEL_TRANSFORMATION_METHOD" Group="0x301D" Element="0x2013" PMSVR="IString">0</Attribute>`)

	line("\t\t\t\t" + `<Attribute Name="DICOM_BITS_ALLOCATED" Group="0x0028" Element="0x0100" PMSVR="IUInt16">8</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="DICOM_BITS_STORED" Group="0x0028" Element="0x0101" PMSVR="IUInt16">8</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="DICOM_HIGH_BIT" Group="0x0028" Element="0x0102" PMSVR="IUInt16">7</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="DICOM_LOSSY_IMAGE_COMPRESSION" Group="0x0028" Element="0x2110" PMSVR="IString">01</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="DICOM_PHOTOMETRIC_INTERPRETATION" Group="0x0028" Element="0x0004" PMSVR="IString">RGB</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="DICOM_PIXEL_REPRESENTATION" Group="0x0028" Element="0x0103" PMSVR="IUInt16">0</Attribute>`)
	line("\t\t\t\t"+`<Attribute Name="DICOM_PIXEL_SPACING" Group="0x0028" Element="0x0030" PMSVR="IDoubleArray">&quot;%s&quot; &quot;%s&quot;</Attribute>`, spacing(info.PixelSpacing), spacing(info.PixelSpacing))
	line("\t\t\t\t" + `<Attribute Name="DICOM_PLANAR_CONFIGURATION" Group="0x0028" Element="0x0006" PMSVR="IUInt16">0</Attribute>`)
	line("\t\t\t\t" + `<Attribute Name="DICOM_SAMPLES_PER_PIXEL" Group="0x0028" Element="0x0002" PMSVR="IUInt16">3</Attribute>`)

	line("\t\t\t\t" + `<Attribute Name="PIIM_PIXEL_DATA_REPRESENTATION_SEQUENCE" Group="0x1001" Element="0x8B01" PMSVR="IDataObjectArray">`)
	line("\t\t\t\t\t" + `<Array>`)
	for i, lv := range info.Levels {
		levelSpacing := spacing(info.PixelSpacing * float64(int64(1)<<uint(i)))
		line("\t\t\t\t\t\t" + `<DataObject ObjectType="PixelDataRepresentation">`)
		line("\t\t\t\t\t\t\t"+`<Attribute Name="DICOM_PIXEL_SPACING" Group="0x0028" Element="0x0030" PMSVR="IDoubleArray">&quot;%s&quot; &quot;%s&quot;</Attribute>`, levelSpacing, levelSpacing)
		line("\t\t\t\t\t\t\t" + `<Attribute Name="PIIM_DP_PIXEL_DATA_REPRESENTATION_POSITION" Group="0x101D" Element="0x100B" PMSVR="IDoubleArray">&quot;0&quot; &quot;0&quot; &quot;0&quot;</Attribute>`)
		line("\t\t\t\t\t\t\t"+`<Attribute Name="PIIM_PIXEL_DATA_REPRESENTATION_COLUMNS" Group="0x2001" Element="0x115E" PMSVR="IUInt32">%d</Attribute>`, lv.Width)
		line("\t\t\t\t\t\t\t"+`<Attribute Name="PIIM_PIXEL_DATA_REPRESENTATION_NUMBER" Group="0x1001" Element="0x8B02" PMSVR="IUInt16">%d</Attribute>`, i)
		line("\t\t\t\t\t\t\t"+`<Attribute Name="PIIM_PIXEL_DATA_REPRESENTATION_ROWS" Group="0x2001" Element="0x115D" PMSVR="IUInt32">%d</Attribute>`, lv.Height)
		line("\t\t\t\t\t\t" + `</DataObject>`)
	}
	line("\t\t\t\t\t" + `</Array>`)
	line("\t\t\t\t" + `</Attribute>`)

	line("\t\t\t\t"+`<Attribute Name="PIM_DP_IMAGE_COLUMNS" Group="0x301D" Element="0x1007" PMSVR="IUInt32">%d</Attribute>`, info.Width)
	line("\t\t\t\t"+`<Attribute Name="PIM_DP_IMAGE_ROWS" Group="0x301D" Element="0x1006" PMSVR="IUInt32">%d</Attribute>`, info.Height)
	line("\t\t\t\t" + `<Attribute Name="PIM_DP_SOURCE_FILE" Group="0x301D" Element="0x1000" PMSVR="IString">%%FILENAME%%</Attribute>`)
	line("\t\t\t" + `</DataObject>`)
}

func writeAssociatedImage(line func(string, ...any), imageType string, jpegData []byte) {
	encoded := base64.StdEncoding.EncodeToString(jpegData)
	line("\t\t\t" + `<DataObject ObjectType="DPScannedImage">`)
	line("\t\t\t\t"+`<Attribute Name="PIM_DP_IMAGE_DATA" Group="0x301D" Element="0x1005" PMSVR="IString">%s</Attribute>`, encoded)
	line("\t\t\t\t"+`<Attribute Name="PIM_DP_IMAGE_TYPE" Group="0x301D" Element="0x1004" PMSVR="IString">%s</Attribute>`, imageType)
	line("\t\t\t" + `</DataObject>`)
}

// spacing formats millimeters per pixel the shortest way that round trips.
func spacing(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
