package protocol

// ProtocolVersion is the fastboot protocol version implemented by this library.
const ProtocolVersion = "0.4"

// Frame size limits.
const (
	// MaxCommandSize is the largest command a device accepts, in bytes
	MaxCommandSize = 64

	// MaxResponseSize is the largest response frame a device sends, in bytes
	MaxResponseSize = 64

	// TagSize is the length of the ASCII tag that starts every response
	TagSize = 4

	// MaxPayloadSize is the largest OKAY/FAIL/INFO payload (64 - 4 byte tag)
	MaxPayloadSize = MaxResponseSize - TagSize

	// DataSizeDigits is the number of hex digits following a DATA tag
	DataSizeDigits = 8

	// ArgSeparator separates a verb from its argument
	ArgSeparator = ':'
)

// Response tags.
const (
	// TagOkay terminates a command successfully
	TagOkay = "OKAY"

	// TagFail terminates a command with a failure reason
	TagFail = "FAIL"

	// TagData announces a data phase of a given size
	TagData = "DATA"

	// TagInfo carries an informational line before the terminal response
	TagInfo = "INFO"
)

// Command verbs.
const (
	// VerbGetVar reads a bootloader variable
	VerbGetVar = "getvar"

	// VerbDownload stages data on the device
	VerbDownload = "download"

	// VerbUpload reads staged data back from the device
	VerbUpload = "upload"

	// VerbFlash writes previously downloaded data to a partition
	VerbFlash = "flash"

	// VerbErase erases a partition
	VerbErase = "erase"

	// VerbBoot boots the previously downloaded image
	VerbBoot = "boot"

	// VerbReboot reboots the device
	VerbReboot = "reboot"

	// VerbRebootBootloader reboots the device back into the bootloader
	VerbRebootBootloader = "reboot-bootloader"

	// VerbContinue continues the normal boot process
	VerbContinue = "continue"

	// VerbSetActive marks a slot as active (A/B devices)
	VerbSetActive = "set_active"

	// VerbOem runs a vendor-specific command
	VerbOem = "oem"
)

// Well-known variable names for getvar.
const (
	VarVersion         = "version"
	VarVersionBoot     = "version-bootloader"
	VarVersionBaseband = "version-baseband"
	VarProduct         = "product"
	VarSerialNo        = "serialno"
	VarSecure          = "secure"
	VarMaxDownloadSize = "max-download-size"
	VarCurrentSlot     = "current-slot"
	VarSlotCount       = "slot-count"
	VarIsUserspace     = "is-userspace"

	// VarAll asks the device to report every variable as INFO lines
	VarAll = "all"
)
