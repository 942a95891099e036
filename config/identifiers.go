package config

// DefaultIdentifiers returns the tracked catalogue, in run order.
func DefaultIdentifiers() []string {
	return []string{
		"B000GISTZ4",
		"B091HTLXL3",
		"B0CLCLYJN1",
		"B09K3BXLBC",
		"B079SZJJDR",
		"B008BH7KKM",
		"B07X2QKVXH",
		"B0C2PT3V38",
		"B084H8LWC3",
		"B0CWGPP4JG",
		"B0B9YC7MSK",
		"B07MTQP3QB",
		"B07FNGNSMT",
		"B0CLCB1XCH",
		"B09CKLFZQP",
		"B07F2FH5NV",
		"B00CHJ45FI",
		"B07WZM3714",
		"B09Q3D6BGD",
		"B0DFH7LND3",
		"B0D9XXP4CT",
		"B0BRNL4LJ1",
		"B0D9BHX9MZ",
		"B00LLZ82O4",
		"B0BGSB5SQR",
		"B0C4LRGMD3",
		"B09VP6HL5J",
		"B07Q8JJLFL",
		"B0D13XGZK5",
		"B0BMWYR42N",
		"B0B97JMMK4",
		"B09Q3HFLPY",
		"B0D984BGJR",
		"B00KT2983Y",
		"B07YNL38ZY",
		"B0C592KZ7M",
		"B0CZDMHCQZ",
		"B07WH2YZ5R",
		"B0CKTVQT6G",
		"B0748HQW6C",
		"B075QHMZRQ",
		"B0757MM647",
		"B07WTBN75M",
		"B08KDCKSGK",
		"B08428SYDF",
		"B0854JP93Y",
		"B07XQB87RF",
		"B0C9TGQMWD",
		"B0BSGWKL3Z",
		"B07MBZK89S",
		"B09RTJQF47",
		"B0D8T5XTRQ",
		"B0DFTR7NF6",
		"B09PHLHS51",
		"B0D3HYDLF6",
		"B09HHL3QL3",
		"B09FLFHX1P",
		"B0D7LWQ974",
		"B07XYXC2HL",
		"B0C2VLD746",
		"B07SC24FGV",
		"B0943646ZS",
		"B0C3GSXMJT",
		"B09B72RJMB",
		"B0CP1TPZY9",
		"B0BG4SSQLT",
		"B083TZNB6W",
		"B0BPMFTYQD",
		"B0BD1RMHJ6",
		"B00KDFRUGY",
		"B081F7VD7Z",
		"B08XF3SCYJ",
		"B0C6KRWZDX",
		"B0BLSCFWL8",
		"B0BW18JWYF",
		"B00CHJ470G",
		"B09XXM7K79",
		"B0BPCPDJ46",
	}
}
